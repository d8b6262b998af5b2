package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avoncourt/steward/pkg/steward/history"
)

// newStatusCmd creates the `steward status` command showing recent
// interventions and the status log tail.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent interventions",
		Long: `Print the most recent interventions from the history database and
the tail of the status log.

Examples:
  steward status
  steward status --recent 20`,
		RunE: runStatus,
	}

	cmd.Flags().Int("recent", 10, "number of interventions to show")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	n, _ := cmd.Flags().GetInt("recent")

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	recent, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}

	fmt.Printf("Interventions: %d total\n\n", total)
	if len(recent) == 0 {
		fmt.Println("No interventions recorded yet.")
	}
	for _, rec := range recent {
		flags := ""
		if rec.Forced {
			flags = " FORCED"
		}
		fmt.Printf("[%s] %s%s\n", rec.Time.Local().Format(time.RFC3339), rec.Kind, flags)
		fmt.Printf("  reason:      %s\n", rec.Reason)
		fmt.Printf("  instruction: %s\n", firstLine(rec.Instruction))
	}

	// Status log tail.
	if path := cfg.Supervisor.StatusLog.Path; path != "" {
		if data, err := os.ReadFile(path); err == nil {
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			if len(lines) > 5 {
				lines = lines[len(lines)-5:]
			}
			fmt.Printf("\nStatus log (%s):\n", path)
			for _, line := range lines {
				fmt.Printf("  %s\n", line)
			}
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
