// Package supervisor – escalation.go implements the two safety valves
// that keep the engine from deadlocking itself: the hard forced-progress
// escalation and the milder repeated-content backoff.
package supervisor

import "time"

// Valve tracks wall-clock time since the engine last made real progress
// (a successful dispatch). When every tick has been suppressed past the
// configured ceiling, it clears all suppression state and authorizes
// exactly one forced intervention that bypasses cooldown and dedup.
type Valve struct {
	cfg          Config
	lastProgress time.Time

	repeatCount int
	repeatSince time.Time
}

// NewValve creates a valve. Startup counts as progress so a freshly
// started supervisor cannot fire before a full stall window elapses.
func NewValve(cfg Config, now time.Time) *Valve {
	return &Valve{cfg: cfg, lastProgress: now, repeatSince: now}
}

// NoteProgress records a successful dispatch.
func (v *Valve) NoteProgress(now time.Time) {
	v.lastProgress = now
}

// StalledFor returns how long the engine has gone without progress.
func (v *Valve) StalledFor(now time.Time) time.Duration {
	return now.Sub(v.lastProgress)
}

// ShouldForce reports whether a suppressed tick must be escalated into
// a forced intervention.
func (v *Valve) ShouldForce(now time.Time) bool {
	return v.StalledFor(now) > v.cfg.MaxStuckTime
}

// NoteRepeat counts one substantially-same snapshot toward the backoff
// valve. When the configured threshold of consecutive repeats is
// reached it returns the pause duration and resets the counter. The
// counter also resets on its own after the hard-reset window.
func (v *Valve) NoteRepeat(now time.Time) time.Duration {
	if v.repeatCount > 0 && now.Sub(v.repeatSince) > v.cfg.RepeatBackoff.HardReset {
		v.repeatCount = 0
	}
	if v.repeatCount == 0 {
		v.repeatSince = now
	}
	v.repeatCount++
	if v.repeatCount >= v.cfg.RepeatBackoff.Threshold {
		v.repeatCount = 0
		return v.cfg.RepeatBackoff.Pause
	}
	return 0
}

// ResetRepeats clears the backoff counter, e.g. when content changed.
func (v *Valve) ResetRepeats() {
	v.repeatCount = 0
}
