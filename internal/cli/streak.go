package cli

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulsefit/pulse/internal/domain"
)

func init() {
	streakMissCmd.Flags().StringVar(&streakDate, "date", "", "Day of the miss (YYYY-MM-DD, default today)")
	streakCmd.AddCommand(streakMissCmd)
	rootCmd.AddCommand(streakCmd)
}

var streakDate string

var streakCmd = &cobra.Command{
	Use:   "streak [category]",
	Short: "Show current and longest streaks",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStreak,
}

var streakMissCmd = &cobra.Command{
	Use:   "miss <category>",
	Short: "Record a missed day, resetting the streak",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreakMiss,
}

func runStreak(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	streaks := d.Tracker.Streaks()
	if len(args) == 1 {
		streaks = map[string]domain.StreakState{args[0]: d.Tracker.StreakState(args[0])}
	}
	if jsonOutput {
		return printJSON(streaks)
	}
	if len(streaks) == 0 {
		fmt.Println("No streaks yet. Run 'pulse done <category>' to start one.")
		return nil
	}

	names := make([]string, 0, len(streaks))
	for name := range streaks {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCURRENT\tLONGEST\tLAST")
	for _, name := range names {
		st := streaks[name]
		last := st.LastCompleted
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, st.CurrentCount, st.LongestCount, last)
	}
	return w.Flush()
}

func runStreakMiss(cmd *cobra.Command, args []string) error {
	ts, err := parseDay(streakDate)
	if err != nil {
		return err
	}
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	count := d.Tracker.UpdateStreak(cmd.Context(), args[0], false, ts)
	if jsonOutput {
		return printJSON(map[string]int{"current": count})
	}
	fmt.Printf("%s streak reset to %d.\n", args[0], count)
	return nil
}
