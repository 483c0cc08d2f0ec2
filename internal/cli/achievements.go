package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsefit/pulse/internal/domain"
)

func init() {
	achievementsCmd.Flags().BoolVar(&achievementsUnlockedOnly, "unlocked", false, "Only show unlocked achievements")
	rootCmd.AddCommand(achievementsCmd)
}

var achievementsUnlockedOnly bool

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Aliases: []string{"ach"},
	Short:   "List achievements by category with progress",
	RunE:    runAchievements,
}

func runAchievements(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if achievementsUnlockedOnly {
		unlocked := d.Tracker.Unlocked()
		if jsonOutput {
			return printJSON(unlocked)
		}
		for _, u := range unlocked {
			fmt.Printf("%s  %-20s +%d\n", u.UnlockedAt.Format("2006-01-02"), u.ID, u.PointsAwarded)
		}
		return nil
	}

	byCat := d.Tracker.AchievementsByCategory()
	if jsonOutput {
		return printJSON(byCat)
	}
	for _, cat := range domain.AchievementCategories {
		fmt.Printf("%s\n", cat)
		for _, st := range byCat[cat] {
			mark := " "
			if st.Unlocked {
				mark = "✓"
			}
			fmt.Printf("  %s %-22s %-9s %s\n", mark, st.Title, st.Tier, renderProgress(st.Progress))
		}
	}
	fmt.Println()
	fmt.Println(renderLevel(d.Tracker.UserLevel()))
	return nil
}
