package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsefit/pulse/internal/domain"
)

func init() {
	nudgeCmd.Flags().IntVar(&nudgeFriends, "friends", 0, "Friends active today")
	nudgeCmd.Flags().StringVar(&nudgeAchievement, "achievement", "", "Recent achievement title to celebrate")
	nudgeCmd.Flags().BoolVar(&nudgeHistory, "history", false, "Show previously generated nudges")
	rootCmd.AddCommand(nudgeCmd)
}

var (
	nudgeFriends     int
	nudgeAchievement string
	nudgeHistory     bool
)

var nudgeCmd = &cobra.Command{
	Use:   "nudge [category]",
	Short: "Generate a motivational nudge",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  runNudge,
}

func runNudge(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if nudgeHistory {
		history := d.Tracker.NudgeHistory()
		if jsonOutput {
			return printJSON(history)
		}
		for _, m := range history {
			fmt.Printf("%s  %-18s %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Type, m.Title, m.Message)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("category required (or pass --history)")
	}
	msg := d.Tracker.GenerateNudge(cmd.Context(), args[0], domain.NudgeContext{
		RecentAchievement:  nudgeAchievement,
		FriendsActiveToday: nudgeFriends,
	})
	if jsonOutput {
		return printJSON(msg)
	}
	fmt.Printf("%s\n%s\n", msg.Title, msg.Message)
	return nil
}
