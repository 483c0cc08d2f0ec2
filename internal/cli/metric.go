package cli

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	metricCmd.AddCommand(metricSetCmd, metricAddCmd)
	rootCmd.AddCommand(metricCmd)
}

var metricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Show or change progress metrics",
	RunE:  runMetricList,
}

var metricSetCmd = &cobra.Command{
	Use:   "set <metric> <value>",
	Short: "Set a metric to an absolute value",
	Args:  cobra.ExactArgs(2),
	RunE:  runMetricSet,
}

var metricAddCmd = &cobra.Command{
	Use:   "add <metric> <delta>",
	Short: "Add to a metric",
	Args:  cobra.ExactArgs(2),
	RunE:  runMetricAdd,
}

func runMetricList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	m := d.Tracker.Metrics()
	if jsonOutput {
		return printJSON(m)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, formatAmount(m[name]))
	}
	return w.Flush()
}

func runMetricSet(cmd *cobra.Command, args []string) error {
	v, err := parseFloat(args[1])
	if err != nil {
		return err
	}
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	unlocked := d.Tracker.UpdateProgress(cmd.Context(), args[0], v)
	if jsonOutput {
		return printJSON(unlocked)
	}
	fmt.Printf("%s = %s\n", args[0], formatAmount(v))
	printUnlocks(unlocked)
	return nil
}

func runMetricAdd(cmd *cobra.Command, args []string) error {
	delta, err := parseFloat(args[1])
	if err != nil {
		return err
	}
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	v, unlocked := d.Tracker.IncrementMetric(cmd.Context(), args[0], delta)
	if jsonOutput {
		return printJSON(unlocked)
	}
	fmt.Printf("%s = %s\n", args[0], formatAmount(v))
	printUnlocks(unlocked)
	return nil
}
