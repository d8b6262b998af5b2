// Package supervisor – config.go defines the configuration for the
// screen-supervision decision engine: polling cadence, suppression
// thresholds, bounded-history sizes, and the marker tables used by the
// snapshot validator and signal classifier.
package supervisor

import "time"

// Config holds all decision-engine tuning parameters.
type Config struct {
	// TickInterval is the time between polling ticks (default: 20s).
	TickInterval time.Duration `yaml:"tick_interval"`

	// Cooldown is the minimum spacing between two non-forced
	// interventions (default: 8s).
	Cooldown time.Duration `yaml:"cooldown"`

	// MaxSameContent is how many times the same raw content may trigger
	// an intervention before being suppressed (default: 3).
	MaxSameContent int `yaml:"max_same_content"`

	// MaxStuckTime is the hard ceiling: when every tick has been
	// suppressed for this long, the escalation valve clears all
	// suppression state and forces one intervention (default: 2m).
	MaxStuckTime time.Duration `yaml:"max_stuck_time"`

	// StuckThreshold is how long content must stay unchanged before the
	// classifier reports stuck (default: 30s).
	StuckThreshold time.Duration `yaml:"stuck_threshold"`

	// BusyStuckThreshold replaces StuckThreshold while a busy marker is
	// visible, since active generation legitimately holds the screen
	// still longer (default: 60s).
	BusyStuckThreshold time.Duration `yaml:"busy_stuck_threshold"`

	// GrowthMargin is the character-count increase treated as active
	// generation rather than a content change (default: 50).
	GrowthMargin int `yaml:"growth_margin"`

	// MinSnapshotLen rejects snapshots shorter than this after trimming
	// (default: 10).
	MinSnapshotLen int `yaml:"min_snapshot_len"`

	// HistoryCap / HistoryKeep bound the dialog history: once the
	// history exceeds HistoryCap entries it is trimmed to the most
	// recent HistoryKeep (defaults: 20 / 15).
	HistoryCap  int `yaml:"history_cap"`
	HistoryKeep int `yaml:"history_keep"`

	// TurnCap / TurnKeep bound the retained conversation turns
	// (defaults: 10 / 7).
	TurnCap  int `yaml:"turn_cap"`
	TurnKeep int `yaml:"turn_keep"`

	// RepetitionCap / RepetitionKeep bound the raw-text repetition
	// counter (defaults: 100 / 50).
	RepetitionCap  int `yaml:"repetition_cap"`
	RepetitionKeep int `yaml:"repetition_keep"`

	// ProcessedCap bounds the set of already-processed fingerprints;
	// on overflow the oldest half is evicted (default: 50).
	ProcessedCap int `yaml:"processed_cap"`

	// EchoMinLen is the minimum length of the last sent instruction for
	// the echo check to apply (default: 20).
	EchoMinLen int `yaml:"echo_min_len"`

	// DuplicateSimilarity is the positional-similarity threshold above
	// which a snapshot is treated as cosmetic OCR drift of the last
	// dialog text (default: 0.99).
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`

	// SameContentSimilarity is the threshold for the softer
	// "substantially same" routing, computed on normalized text
	// (default: 0.9).
	SameContentSimilarity float64 `yaml:"same_content_similarity"`

	// ContainmentMinLen is the minimum normalized length for the
	// containment variant of the substantially-same check (default: 50).
	ContainmentMinLen int `yaml:"containment_min_len"`

	// RepeatBackoff configures the milder rate-limiting valve for
	// substantially-same content.
	RepeatBackoff RepeatBackoffConfig `yaml:"repeat_backoff"`

	// FallbackInstruction is dispatched when the generator fails or
	// returns near-empty output.
	FallbackInstruction string `yaml:"fallback_instruction"`

	// StatusLog configures the append-only status log file.
	StatusLog StatusLogConfig `yaml:"status_log"`

	// Markers are the enumerated keyword tables used by the validator
	// and classifier. Loaded once at construction; no scattered
	// literals elsewhere.
	Markers MarkerConfig `yaml:"markers"`
}

// RepeatBackoffConfig tunes the repeated-content backoff valve.
type RepeatBackoffConfig struct {
	// Threshold is how many consecutive substantially-same snapshots
	// trigger a polling pause (default: 5).
	Threshold int `yaml:"threshold"`

	// Pause is how long polling pauses once the threshold is reached
	// (default: 30s).
	Pause time.Duration `yaml:"pause"`

	// SubThreshold is the stable duration below which repeats only
	// count toward the backoff instead of forcing a timeout
	// intervention (default: 60s).
	SubThreshold time.Duration `yaml:"sub_threshold"`

	// HardReset clears the repeat counter after this much wall-clock
	// time regardless of count (default: 10m).
	HardReset time.Duration `yaml:"hard_reset"`
}

// StatusLogConfig tunes the append-only status log.
type StatusLogConfig struct {
	// Path is the status log file location.
	Path string `yaml:"path"`

	// MaxLines / KeepLines bound the file: once it exceeds MaxLines it
	// is pruned to the most recent KeepLines (defaults: 100 / 80).
	MaxLines  int `yaml:"max_lines"`
	KeepLines int `yaml:"keep_lines"`
}

// MarkerConfig enumerates the keyword tables that drive classification.
// Every entry is matched case-insensitively as a substring.
type MarkerConfig struct {
	// Invalid marks OCR-failure placeholder tokens; snapshots containing
	// any of these never enter history.
	Invalid []string `yaml:"invalid"`

	// Busy marks in-progress generation.
	Busy []string `yaml:"busy"`

	// ActiveWork marks terms that, combined with visible growth, count
	// as active generation.
	ActiveWork []string `yaml:"active_work"`

	// Review marks the high-confidence "ready for review" family,
	// checked before any other completion signal.
	Review []string `yaml:"review"`

	// Completion marks explicit done/finished/success phrases.
	Completion []string `yaml:"completion"`

	// Question marks prompts asking the observer what to do next.
	Question []string `yaml:"question"`

	// Request marks user-intent phrases that open a new conversation
	// turn.
	Request []string `yaml:"request"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:          20 * time.Second,
		Cooldown:              8 * time.Second,
		MaxSameContent:        3,
		MaxStuckTime:          2 * time.Minute,
		StuckThreshold:        30 * time.Second,
		BusyStuckThreshold:    60 * time.Second,
		GrowthMargin:          50,
		MinSnapshotLen:        10,
		HistoryCap:            20,
		HistoryKeep:           15,
		TurnCap:               10,
		TurnKeep:              7,
		RepetitionCap:         100,
		RepetitionKeep:        50,
		ProcessedCap:          50,
		EchoMinLen:            20,
		DuplicateSimilarity:   0.99,
		SameContentSimilarity: 0.9,
		ContainmentMinLen:     50,
		RepeatBackoff: RepeatBackoffConfig{
			Threshold:    5,
			Pause:        30 * time.Second,
			SubThreshold: 60 * time.Second,
			HardReset:    10 * time.Minute,
		},
		FallbackInstruction: "I noticed your reply. Let's keep the work moving: " +
			"tell me where you are right now and what you need from me next.",
		StatusLog: StatusLogConfig{
			Path:      "steward_status.log",
			MaxLines:  100,
			KeepLines: 80,
		},
		Markers: DefaultMarkers(),
	}
}

// DefaultMarkers returns the built-in keyword tables.
func DefaultMarkers() MarkerConfig {
	return MarkerConfig{
		Invalid: []string{
			"dark_content",
			"detected_features:",
			"high_brightness_content",
			"text_like_patterns",
			"stable_content",
			"unknown_content",
			"ocr_failed",
		},
		Busy: []string{
			"generating",
			"working on",
			"processing",
			"analyzing",
			"loading",
			"thinking",
			"please wait",
		},
		ActiveWork: []string{
			"generating",
			"processing",
			"creating",
			"writing",
			"building",
		},
		Review: []string{
			"review changes",
			"review the changes",
			"code review",
			"ready for review",
			"changes ready",
			"implementation complete",
		},
		Completion: []string{
			"completed successfully",
			"task complete",
			"execution finished",
			"build successful",
			"all tests pass",
			"done",
			"finished",
		},
		Question: []string{
			"what would you like",
			"would you like me to",
			"do you want",
			"shall i",
			"should i",
			"anything else",
			"what's next",
			"let me know",
		},
		Request: []string{
			"please",
			"help me",
			"implement",
			"fix",
			"optimize",
			"add",
			"create",
			"refactor",
		},
	}
}

// normalize clamps nonsensical values back to defaults. Called by New
// so a partially filled YAML config cannot wedge the engine.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.MaxSameContent <= 0 {
		c.MaxSameContent = def.MaxSameContent
	}
	if c.MaxStuckTime <= 0 {
		c.MaxStuckTime = def.MaxStuckTime
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = def.StuckThreshold
	}
	if c.BusyStuckThreshold <= c.StuckThreshold {
		c.BusyStuckThreshold = c.StuckThreshold * 2
	}
	if c.GrowthMargin <= 0 {
		c.GrowthMargin = def.GrowthMargin
	}
	if c.MinSnapshotLen <= 0 {
		c.MinSnapshotLen = def.MinSnapshotLen
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = def.HistoryCap
	}
	if c.HistoryKeep <= 0 || c.HistoryKeep > c.HistoryCap {
		c.HistoryKeep = c.HistoryCap * 3 / 4
	}
	if c.TurnCap <= 0 {
		c.TurnCap = def.TurnCap
	}
	if c.TurnKeep <= 0 || c.TurnKeep > c.TurnCap {
		c.TurnKeep = c.TurnCap * 7 / 10
	}
	if c.RepetitionCap <= 0 {
		c.RepetitionCap = def.RepetitionCap
	}
	if c.RepetitionKeep <= 0 || c.RepetitionKeep > c.RepetitionCap {
		c.RepetitionKeep = c.RepetitionCap / 2
	}
	if c.ProcessedCap <= 0 {
		c.ProcessedCap = def.ProcessedCap
	}
	if c.EchoMinLen <= 0 {
		c.EchoMinLen = def.EchoMinLen
	}
	if c.DuplicateSimilarity <= 0 || c.DuplicateSimilarity > 1 {
		c.DuplicateSimilarity = def.DuplicateSimilarity
	}
	if c.SameContentSimilarity <= 0 || c.SameContentSimilarity > 1 {
		c.SameContentSimilarity = def.SameContentSimilarity
	}
	if c.ContainmentMinLen <= 0 {
		c.ContainmentMinLen = def.ContainmentMinLen
	}
	if c.RepeatBackoff.Threshold <= 0 {
		c.RepeatBackoff.Threshold = def.RepeatBackoff.Threshold
	}
	if c.RepeatBackoff.Pause <= 0 {
		c.RepeatBackoff.Pause = def.RepeatBackoff.Pause
	}
	if c.RepeatBackoff.SubThreshold <= 0 {
		c.RepeatBackoff.SubThreshold = def.RepeatBackoff.SubThreshold
	}
	if c.RepeatBackoff.HardReset <= 0 {
		c.RepeatBackoff.HardReset = def.RepeatBackoff.HardReset
	}
	if c.FallbackInstruction == "" {
		c.FallbackInstruction = def.FallbackInstruction
	}
	if c.StatusLog.MaxLines <= 0 {
		c.StatusLog.MaxLines = def.StatusLog.MaxLines
	}
	if c.StatusLog.KeepLines <= 0 || c.StatusLog.KeepLines > c.StatusLog.MaxLines {
		c.StatusLog.KeepLines = c.StatusLog.MaxLines * 4 / 5
	}
	if len(c.Markers.Invalid) == 0 {
		c.Markers.Invalid = def.Markers.Invalid
	}
	if len(c.Markers.Busy) == 0 {
		c.Markers.Busy = def.Markers.Busy
	}
	if len(c.Markers.ActiveWork) == 0 {
		c.Markers.ActiveWork = def.Markers.ActiveWork
	}
	if len(c.Markers.Review) == 0 {
		c.Markers.Review = def.Markers.Review
	}
	if len(c.Markers.Completion) == 0 {
		c.Markers.Completion = def.Markers.Completion
	}
	if len(c.Markers.Question) == 0 {
		c.Markers.Question = def.Markers.Question
	}
	if len(c.Markers.Request) == 0 {
		c.Markers.Request = def.Markers.Request
	}
}
