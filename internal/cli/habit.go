package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(habitsCmd)
	rootCmd.AddCommand(insightsCmd)
}

var habitsCmd = &cobra.Command{
	Use:     "habits",
	Aliases: []string{"ls"},
	Short:   "List tracked habits",
	RunE:    runHabits,
}

var insightsCmd = &cobra.Command{
	Use:   "insights <category>",
	Short: "Show completion rate, consistency, trend, and advice for a habit",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsights,
}

func runHabits(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	habits := d.Tracker.Habits()
	if jsonOutput {
		return printJSON(habits)
	}
	if len(habits) == 0 {
		fmt.Println("No habits tracked. Run 'pulse done <category>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSTREAK\tLONGEST\tTOTAL\tLAST")
	for _, h := range habits {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			h.Category, h.Streak, h.LongestStreak, h.TotalCompletions, h.LastCompleted)
	}
	return w.Flush()
}

func runInsights(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	in := d.Tracker.HabitInsights(args[0])
	if jsonOutput {
		return printJSON(in)
	}

	fmt.Printf("%s\n", in.Category)
	fmt.Printf("  Completion rate: %s %d%%\n", renderBar(float64(in.CompletionRate)), in.CompletionRate)
	fmt.Printf("  Consistency:     %s %d%%\n", renderBar(float64(in.Consistency)), in.Consistency)
	fmt.Printf("  Trend:           %s\n", in.Trend)
	fmt.Printf("  Streak:          %d (longest %d)\n", in.Streak, in.LongestStreak)
	for _, tip := range in.Insights {
		fmt.Printf("  - %s\n", tip)
	}
	return nil
}
