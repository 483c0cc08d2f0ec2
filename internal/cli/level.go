package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulsefit/pulse/internal/app/engagement"
)

func init() {
	levelCmd.Flags().BoolVar(&levelTable, "table", false, "Show the full level table")
	rootCmd.AddCommand(levelCmd)
}

var levelTable bool

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Show the current level and points",
	RunE:  runLevel,
}

func runLevel(cmd *cobra.Command, args []string) error {
	if levelTable {
		levels := engagement.Levels()
		if jsonOutput {
			return printJSON(levels)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tTITLE\tPOINTS")
		for _, l := range levels {
			fmt.Fprintf(w, "%d\t%s\t%d\n", l.Level, l.Title, l.Points)
		}
		return w.Flush()
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	info := d.Tracker.UserLevel()
	if jsonOutput {
		return printJSON(info)
	}
	fmt.Println(renderLevel(info))
	return nil
}
