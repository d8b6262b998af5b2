// Package supervisor – snapshot.go defines the per-tick text observation
// and the validator that keeps OCR noise out of the engine.
package supervisor

import (
	"strings"
	"time"
)

// Snapshot is one sampled text observation of the monitored surface.
// Immutable once created; folded into history and discarded.
type Snapshot struct {
	Text      string
	Timestamp time.Time
	Valid     bool
}

// Validator rejects malformed or noise text before it can touch history,
// repetition counters, or stability timers. Pure predicate, no side
// effects.
type Validator struct {
	minLen  int
	invalid []string
}

// NewValidator builds a validator from the configured marker table.
func NewValidator(cfg Config) *Validator {
	markers := make([]string, len(cfg.Markers.Invalid))
	for i, m := range cfg.Markers.Invalid {
		markers[i] = strings.ToLower(m)
	}
	return &Validator{
		minLen:  cfg.MinSnapshotLen,
		invalid: markers,
	}
}

// Validate reports whether text is acceptable input: long enough after
// trimming and free of known OCR-failure placeholder tokens.
func (v *Validator) Validate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < v.minLen {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range v.invalid {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
