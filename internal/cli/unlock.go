package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(checkCmd)
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <achievement-id>",
	Short: "Unlock an achievement whose requirements are met",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlock,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every achievement against current progress",
	RunE:  runCheck,
}

func runUnlock(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	rec, err := d.Tracker.TryUnlockAchievement(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rec)
	}
	fmt.Printf("Unlocked %s (+%d pts)\n", rec.ID, rec.PointsAwarded)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	results := d.Tracker.CheckAchievements(cmd.Context(), nil)
	if jsonOutput {
		return printJSON(results)
	}
	newly := 0
	for _, r := range results {
		if r.NewlyUnlocked {
			newly++
			fmt.Printf("[unlocked] %s %s (+%d pts)\n", r.Achievement.Icon, r.Achievement.Title, r.Achievement.PointValue)
		}
	}
	if newly == 0 {
		fmt.Println("No new achievements.")
	}
	return nil
}
