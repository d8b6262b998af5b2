package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avoncourt/steward/pkg/steward/actuate"
	"github.com/avoncourt/steward/pkg/steward/capture"
	"github.com/avoncourt/steward/pkg/steward/config"
	"github.com/avoncourt/steward/pkg/steward/history"
	"github.com/avoncourt/steward/pkg/steward/instruct"
	"github.com/avoncourt/steward/pkg/steward/janitor"
	"github.com/avoncourt/steward/pkg/steward/notify"
	"github.com/avoncourt/steward/pkg/steward/supervisor"
)

// newRunCmd creates the `steward run` command that starts supervision.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervision loop",
		Long: `Start the polling loop: capture the configured screen regions,
decide whether an intervention is warranted, and deliver instructions
to the monitored agent until interrupted.

Examples:
  steward run
  steward run --config ./steward.yaml
  steward run --dry-run`,
		RunE: runRun,
	}

	cmd.Flags().Bool("dry-run", false, "log instructions instead of delivering them")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	// Resolve the generator API key: vault, keyring, env, config.
	instruct.ResolveAPIKey(&cfg.Instruct, logger)

	// ── Capture side ──
	source, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}

	// ── Delivery side ──
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	executor, err := buildExecutor(cfg, dryRun, logger)
	if err != nil {
		return err
	}

	generator := instruct.NewClient(cfg.Instruct, logger)

	// ── History ──
	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	// ── Notifications ──
	var notifier supervisor.Notifier
	if cfg.Notify.Enabled {
		discord := notify.NewDiscord(cfg.Notify, logger)
		if err := discord.Connect(); err != nil {
			logger.Error("discord notifier unavailable, continuing without", "error", err)
		} else {
			defer discord.Close()
			notifier = discord
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Maintenance ──
	statusLog := supervisor.NewStatusLog(cfg.Supervisor.StatusLog, logger)
	jan := janitor.New(cfg.Janitor, statusLog, store, logger)
	if err := jan.Start(ctx); err != nil {
		return fmt.Errorf("starting maintenance: %w", err)
	}
	defer jan.Stop()

	// ── Supervisor ──
	sup := supervisor.New(cfg.Supervisor, supervisor.Deps{
		Source:    source,
		Generator: generator,
		Executor:  executor,
		Recorder:  store,
		Notifier:  notifier,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	logger.Info("steward running, press Ctrl+C to stop",
		"capture_mode", cfg.Capture.Mode,
		"dry_run", dryRun,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping...")
		cancel()
		// Let a tick already inside dispatch finish.
		select {
		case <-errCh:
		case <-time.After(10 * time.Second):
			logger.Warn("shutdown timed out after 10s, forcing exit")
		}
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("supervision loop: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// buildSource constructs the snapshot source from the capture config.
func buildSource(cfg *config.Config, logger *slog.Logger) (supervisor.Source, error) {
	switch cfg.Capture.Mode {
	case "file":
		if cfg.Capture.TextFile == "" {
			return nil, fmt.Errorf("capture mode %q requires text_file", cfg.Capture.Mode)
		}
		return capture.NewFileSource(cfg.Capture.TextFile), nil
	default:
		regions, err := capture.LoadRegions(cfg.Capture.RegionFile)
		if err != nil {
			return nil, fmt.Errorf("loading capture regions: %w (run 'steward setup' to define them)", err)
		}
		return capture.NewExecSource(cfg.Capture, regions, logger)
	}
}

// buildExecutor constructs the instruction executor. Dry-run and the
// "log" mode both log instead of delivering.
func buildExecutor(cfg *config.Config, dryRun bool, logger *slog.Logger) (supervisor.Executor, error) {
	if dryRun || cfg.Actuate.Mode == "log" {
		return actuate.NewLogExecutor(logger), nil
	}
	return actuate.NewExecExecutor(cfg.Actuate, logger)
}
