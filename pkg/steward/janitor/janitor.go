// Package janitor runs periodic maintenance: trimming the status log and
// expiring old intervention records. Uses robfig/cron for scheduling.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls the maintenance schedule.
type Config struct {
	// Enabled turns periodic maintenance on.
	Enabled bool `yaml:"enabled"`

	// Schedule is the cron expression for maintenance runs.
	// Supports standard 5-field cron and descriptors like "@daily".
	Schedule string `yaml:"schedule"`

	// KeepDays is how long intervention records are retained.
	KeepDays int `yaml:"keep_days"`
}

// DefaultConfig returns maintenance settings with a daily schedule.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Schedule: "@daily",
		KeepDays: 30,
	}
}

// LogPruner trims the status log to its retention window.
type LogPruner interface {
	Prune() error
}

// HistoryPruner expires intervention records older than the cutoff.
type HistoryPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor schedules and runs the maintenance tasks.
type Janitor struct {
	cfg     Config
	logs    LogPruner
	history HistoryPruner
	logger  *slog.Logger

	cron *cron.Cron

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Janitor. Either pruner may be nil; nil tasks are skipped.
func New(cfg Config, logs LogPruner, history HistoryPruner, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@daily"
	}
	if cfg.KeepDays <= 0 {
		cfg.KeepDays = 30
	}
	return &Janitor{
		cfg:     cfg,
		logs:    logs,
		history: history,
		logger:  logger.With("component", "janitor"),
		now:     time.Now,
	}
}

// Start registers the maintenance job and starts the cron scheduler.
// It also runs one sweep immediately so a long-stopped setup is cleaned
// on startup rather than at the next scheduled run.
func (j *Janitor) Start(ctx context.Context) error {
	if !j.cfg.Enabled {
		j.logger.Debug("maintenance disabled")
		return nil
	}

	j.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	if _, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		j.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", j.cfg.Schedule, err)
	}

	j.cron.Start()
	j.logger.Info("maintenance scheduled", "schedule", j.cfg.Schedule, "keep_days", j.cfg.KeepDays)

	go j.Sweep(ctx)
	return nil
}

// Stop shuts down the scheduler, waiting briefly for a running sweep.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(10 * time.Second):
		j.logger.Warn("maintenance stop timed out")
	}
}

// Sweep runs all maintenance tasks once.
func (j *Janitor) Sweep(ctx context.Context) {
	if j.logs != nil {
		if err := j.logs.Prune(); err != nil {
			j.logger.Warn("status log prune failed", "err", err)
		}
	}
	if j.history != nil {
		cutoff := j.now().AddDate(0, 0, -j.cfg.KeepDays)
		if _, err := j.history.PruneOlderThan(ctx, cutoff); err != nil {
			j.logger.Warn("history prune failed", "err", err)
		}
	}
}
