package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	doneCmd.Flags().StringVar(&doneDate, "date", "", "Day of the completion (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(doneCmd)
}

var doneDate string

var doneCmd = &cobra.Command{
	Use:   "done <category>",
	Short: "Log a completed activity",
	Long: `Log a completion for a category such as workout, nutrition, hydration,
meditation, or sleep. Extends the streak, records the habit day, and awards
any achievements the new totals unlock.`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

func runDone(cmd *cobra.Command, args []string) error {
	ts, err := parseDay(doneDate)
	if err != nil {
		return err
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Tracker.RecordCompletion(cmd.Context(), args[0], ts)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}

	if !res.NewDay {
		fmt.Printf("%s already logged for that day.\n", res.Category)
	}
	fmt.Printf("%s streak: %d day(s)\n", res.Category, res.Streak)
	printUnlocks(res.NewAchievements)
	fmt.Println(renderLevel(res.Level))
	return nil
}
