package supervisor

import (
	"testing"
	"time"
)

func TestConfig_NormalizeFillsZeroValues(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.normalize()
	def := DefaultConfig()

	if cfg.TickInterval != def.TickInterval {
		t.Errorf("tick interval not defaulted: %s", cfg.TickInterval)
	}
	if cfg.Cooldown != def.Cooldown {
		t.Errorf("cooldown not defaulted: %s", cfg.Cooldown)
	}
	if cfg.MaxSameContent != def.MaxSameContent {
		t.Errorf("max same content not defaulted: %d", cfg.MaxSameContent)
	}
	if len(cfg.Markers.Invalid) == 0 || len(cfg.Markers.Request) == 0 {
		t.Error("marker tables not defaulted")
	}
	if cfg.FallbackInstruction == "" {
		t.Error("fallback instruction not defaulted")
	}
}

func TestConfig_NormalizeKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		TickInterval: 5 * time.Second,
		Cooldown:     2 * time.Second,
	}
	cfg.normalize()

	if cfg.TickInterval != 5*time.Second {
		t.Errorf("explicit tick interval overwritten: %s", cfg.TickInterval)
	}
	if cfg.Cooldown != 2*time.Second {
		t.Errorf("explicit cooldown overwritten: %s", cfg.Cooldown)
	}
}

func TestConfig_NormalizeClampsInvertedBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HistoryKeep = cfg.HistoryCap + 10
	cfg.BusyStuckThreshold = cfg.StuckThreshold - time.Second
	cfg.StatusLog.KeepLines = cfg.StatusLog.MaxLines + 1
	cfg.normalize()

	if cfg.HistoryKeep > cfg.HistoryCap {
		t.Error("history keep must not exceed cap")
	}
	if cfg.BusyStuckThreshold <= cfg.StuckThreshold {
		t.Error("busy stall threshold must exceed the base threshold")
	}
	if cfg.StatusLog.KeepLines > cfg.StatusLog.MaxLines {
		t.Error("status log keep must not exceed max")
	}
}
