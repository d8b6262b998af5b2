// Package supervisor – classifier.go labels each snapshot as completed,
// busy, stuck, or normal from the configured marker tables.
//
// Priority when several readings apply: completed > busy > stuck >
// normal. A completion marker always pre-empts progress wording that
// happens to share the screen with it.
package supervisor

import (
	"strings"
	"time"
)

// Signal is the classifier's reading of one snapshot.
type Signal int

const (
	SignalNormal Signal = iota
	SignalStuck
	SignalBusy
	SignalCompleted
)

// String returns the lower-case signal name for logs.
func (s Signal) String() string {
	switch s {
	case SignalStuck:
		return "stuck"
	case SignalBusy:
		return "busy"
	case SignalCompleted:
		return "completed"
	default:
		return "normal"
	}
}

// Classification carries the winning signal plus the raw readings, so
// the orchestrator can log why a decision was made.
type Classification struct {
	Signal    Signal
	Busy      bool
	Completed bool
	Stuck     bool
	Reason    string
}

// Classifier evaluates marker tables against snapshot text. All tables
// are lower-cased once at construction.
type Classifier struct {
	cfg        Config
	busy       []string
	activeWork []string
	review     []string
	completion []string
	question   []string
}

// NewClassifier builds a classifier from the configured marker tables.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:        cfg,
		busy:       lowerAll(cfg.Markers.Busy),
		activeWork: lowerAll(cfg.Markers.ActiveWork),
		review:     lowerAll(cfg.Markers.Review),
		completion: lowerAll(cfg.Markers.Completion),
		question:   lowerAll(cfg.Markers.Question),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// HasBusyMarker reports whether lower-cased text carries an in-progress
// marker. Exposed for the stability tracker's growth exemption.
func (c *Classifier) HasBusyMarker(lower string) bool {
	return containsAny(lower, c.busy)
}

// Classify labels one snapshot given the stability tracker's update.
func (c *Classifier) Classify(text string, upd Update) Classification {
	lower := strings.ToLower(text)

	busy := c.isBusy(lower, upd)
	completed, completedReason := c.isCompleted(lower)

	stuck := false
	if !upd.Changed && !completed {
		threshold := c.cfg.StuckThreshold
		if busy {
			threshold = c.cfg.BusyStuckThreshold
		}
		stuck = upd.Stable > threshold
	}

	out := Classification{Busy: busy, Completed: completed, Stuck: stuck}
	switch {
	case completed:
		out.Signal = SignalCompleted
		out.Reason = completedReason
	case busy:
		out.Signal = SignalBusy
		out.Reason = "in-progress marker visible"
	case stuck:
		out.Signal = SignalStuck
		out.Reason = "content unchanged past stall threshold"
	default:
		out.Signal = SignalNormal
	}
	return out
}

func (c *Classifier) isBusy(lower string, upd Update) bool {
	if containsAny(lower, c.busy) {
		return true
	}
	// Ellipsis-like progress indicators.
	if strings.Contains(lower, "...") || strings.Contains(lower, "。。。") {
		return true
	}
	// Significant growth combined with an active-work term.
	if upd.Growth > c.cfg.GrowthMargin && containsAny(lower, c.activeWork) {
		return true
	}
	return false
}

func (c *Classifier) isCompleted(lower string) (bool, string) {
	// Review-family markers are the highest-confidence completion
	// signal and are checked first.
	if m := firstMatch(lower, c.review); m != "" {
		return true, "review signal: " + m
	}
	if m := firstMatch(lower, c.completion); m != "" {
		return true, "completion phrase: " + m
	}
	if m := firstMatch(lower, c.question); m != "" {
		return true, "question prompt: " + m
	}
	return false, ""
}

func containsAny(lower string, markers []string) bool {
	return firstMatch(lower, markers) != ""
}

func firstMatch(lower string, markers []string) string {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// stuckThresholdFor returns the active stall threshold; used by tests
// and the simulate REPL to display the live threshold.
func (c *Classifier) stuckThresholdFor(busy bool) time.Duration {
	if busy {
		return c.cfg.BusyStuckThreshold
	}
	return c.cfg.StuckThreshold
}
