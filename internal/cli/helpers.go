package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsefit/pulse/internal/daemon"
	"github.com/pulsefit/pulse/internal/domain"
)

// openDaemon loads config and state for a one-shot command.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	return daemon.New(cmd.Context())
}

// parseDay turns a --date flag into a timestamp. Empty means now.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDateKey(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUnlocks(defs []domain.AchievementDefinition) {
	for _, def := range defs {
		fmt.Printf("[unlocked] %s %s (%s, +%d pts)\n", def.Icon, def.Title, def.Tier, def.PointValue)
	}
}
