// Package supervisor – stability.go tracks when the observed content
// last genuinely changed and owns the bounded dialog history.
package supervisor

import (
	"strings"
	"time"
)

// DialogEntry is one recorded observation in the dialog history.
type DialogEntry struct {
	Timestamp time.Time
	Text      string
}

// DialogHistory is a bounded, append-only sequence of dialog entries.
// Once it exceeds cap entries it is trimmed to the most recent keep,
// oldest first. Only the stability tracker writes to it.
type DialogHistory struct {
	entries []DialogEntry
	cap     int
	keep    int
}

// NewDialogHistory creates a bounded history with the given limits.
func NewDialogHistory(cap, keep int) *DialogHistory {
	return &DialogHistory{
		entries: make([]DialogEntry, 0, cap),
		cap:     cap,
		keep:    keep,
	}
}

// Append records an entry, trimming oldest-first on overflow.
func (h *DialogHistory) Append(e DialogEntry) {
	h.entries = append(h.entries, e)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.keep:]
	}
}

// Len returns the number of retained entries.
func (h *DialogHistory) Len() int { return len(h.entries) }

// Last returns the most recent entry, or a zero entry when empty.
func (h *DialogHistory) Last() DialogEntry {
	if len(h.entries) == 0 {
		return DialogEntry{}
	}
	return h.entries[len(h.entries)-1]
}

// Clear drops all entries.
func (h *DialogHistory) Clear() { h.entries = h.entries[:0] }

// Update is the stability tracker's per-snapshot result.
type Update struct {
	// Changed is true when the content genuinely differs from the last
	// recorded text (not growth during generation, not a shrink from an
	// interface refresh).
	Changed bool

	// Stable is the time since the last real change.
	Stable time.Duration

	// Growth is the character-count delta versus the previous text;
	// positive while content is being appended.
	Growth int
}

// Tracker compares each validated snapshot to the last one, maintains
// the last-change timestamp, and appends real changes to the dialog
// history.
type Tracker struct {
	cfg        Config
	history    *DialogHistory
	lastText   string
	lastChange time.Time
	busyMarker func(string) bool
}

// NewTracker creates a stability tracker. busyMarker reports whether
// text carries an in-progress marker; growth under a busy marker is
// treated as active generation, never as a change or a stall.
func NewTracker(cfg Config, now time.Time, busyMarker func(string) bool) *Tracker {
	return &Tracker{
		cfg:        cfg,
		history:    NewDialogHistory(cfg.HistoryCap, cfg.HistoryKeep),
		lastChange: now,
		busyMarker: busyMarker,
	}
}

// History exposes the dialog history for context rendering. Callers
// must not mutate it.
func (t *Tracker) History() *DialogHistory { return t.history }

// LastText returns the last recorded dialog text.
func (t *Tracker) LastText() string { return t.lastText }

// Observe folds a validated snapshot into the tracker. Invalid
// snapshots must never reach this method.
func (t *Tracker) Observe(text string, now time.Time) Update {
	growth := len(text) - len(t.lastText)

	switch {
	case text == t.lastText:
		return Update{Stable: now.Sub(t.lastChange), Growth: 0}

	case growth > t.cfg.GrowthMargin && t.busyMarker(strings.ToLower(text)):
		// Content is being appended while a busy marker is visible:
		// active generation, not a new event. Reset the timer so the
		// stall detector never fires mid-generation.
		t.lastChange = now
		t.lastText = text
		return Update{Stable: 0, Growth: growth}

	case growth < 0:
		// Shrinking content reads as an interface refresh.
		t.lastChange = now
		t.lastText = text
		return Update{Stable: 0, Growth: growth}

	default:
		t.lastChange = now
		t.lastText = text
		t.history.Append(DialogEntry{Timestamp: now, Text: text})
		return Update{Changed: true, Stable: 0, Growth: growth}
	}
}

// Reset restarts the stability clock, e.g. after an intervention was
// dispatched so the engine does not immediately re-trigger on the same
// stillness.
func (t *Tracker) Reset(now time.Time) {
	t.lastChange = now
}
