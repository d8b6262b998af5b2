// Package supervisor implements the screen-supervision decision engine:
// a single polling loop that observes OCR snapshots of a monitored
// screen region, decides when an automated intervention is warranted,
// and dispatches it through external collaborators.
//
// The engine composes a validator, stability tracker, signal
// classifier, duplicate/repetition guard, cooldown lock, stuck
// escalation valve, and conversation turn manager. Everything outside
// this decision path — capture, OCR, instruction generation, action
// execution — sits behind the collaborator interfaces below.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------- Collaborator boundaries ----------

// Source produces the raw snapshot text for one tick. An error or an
// empty string is treated as a capture failure: the tick is skipped
// with no state mutation.
type Source interface {
	CaptureText(ctx context.Context) (string, error)
}

// Generator produces the intervention instruction. promptContext is the
// turn manager's rendering of recent conversation; reason and kind
// describe why the engine decided to intervene.
type Generator interface {
	Generate(ctx context.Context, promptContext, reason, kind string) (string, error)
}

// Executor delivers the instruction to the monitored surface.
type Executor interface {
	Dispatch(ctx context.Context, instruction string) error
}

// Recorder persists dispatched interventions. Optional.
type Recorder interface {
	Record(ctx context.Context, rec Intervention) error
}

// Notifier reports dispatched interventions out of band. Optional.
type Notifier interface {
	Notify(ctx context.Context, rec Intervention)
}

// Intervention is the record of one dispatched instruction.
type Intervention struct {
	ID          string
	Time        time.Time
	Reason      string
	Kind        string
	Instruction string
	Forced      bool
	OK          bool
}

// Intervention kinds.
const (
	KindCompleted = "response_completed"
	KindTimeout   = "content_timeout"
	KindForced    = "force_progress"
)

// ---------- Tick outcome ----------

// FailureKind classifies why a tick produced no dispatch. None of these
// terminate the loop; every failure degrades to "try again next tick".
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureCapture
	FailureValidation
	FailureGeneration
	FailureDispatch
	FailureInvariant
)

// String returns the failure name for logs.
func (f FailureKind) String() string {
	switch f {
	case FailureCapture:
		return "capture_failure"
	case FailureValidation:
		return "validation_rejection"
	case FailureGeneration:
		return "generation_failure"
	case FailureDispatch:
		return "dispatch_failure"
	case FailureInvariant:
		return "invariant_violation"
	default:
		return "none"
	}
}

// TickResult reports what one tick observed and decided. Returned by
// Tick for the simulate REPL and tests; the run loop only logs it.
type TickResult struct {
	Snapshot       Snapshot
	Classification Classification
	Reason         string
	Kind           string
	Suppressed     bool
	SuppressReason string
	Forced         bool
	Dispatched     bool
	Instruction    string
	Failure        FailureKind
	Paused         bool
}

// ---------- Supervisor ----------

// Deps bundles the external collaborators.
type Deps struct {
	Source    Source
	Generator Generator
	Executor  Executor
	Recorder  Recorder
	Notifier  Notifier
}

// Supervisor is the orchestrating decision loop. It owns the sole
// mutable State record; all components below it only read that record.
type Supervisor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	validator  *Validator
	tracker    *Tracker
	classifier *Classifier
	guard      *Guard
	turns      *TurnManager
	valve      *Valve
	statusLog  *StatusLog
	state      *State

	// now is injected for deterministic tests; defaults to time.Now.
	now func() time.Time

	// pauseUntil suspends polling during a repeated-content backoff.
	pauseUntil time.Time
}

// New creates a supervisor. cfg is normalized in place: zero or
// nonsensical values fall back to defaults.
func New(cfg Config, deps Deps, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.normalize()

	now := time.Now
	classifier := NewClassifier(cfg)
	return &Supervisor{
		cfg:        cfg,
		deps:       deps,
		logger:     logger.With("component", "supervisor"),
		validator:  NewValidator(cfg),
		tracker:    NewTracker(cfg, now(), classifier.HasBusyMarker),
		classifier: classifier,
		guard:      NewGuard(cfg),
		turns:      NewTurnManager(cfg),
		valve:      NewValve(cfg, now()),
		statusLog:  NewStatusLog(cfg.StatusLog, logger),
		state:      &State{},
		now:        now,
	}
}

// State exposes the intervention record read-only (for the status
// command and tests). Callers must not write through it.
func (s *Supervisor) State() State { return *s.state }

// SetClock replaces the time source and re-bases the stability tracker
// and escalation valve on it. Used by the simulate REPL and tests to
// step virtual time between ticks. Must be called before the first Tick.
func (s *Supervisor) SetClock(now func() time.Time) {
	s.now = now
	s.tracker = NewTracker(s.cfg, now(), s.classifier.HasBusyMarker)
	s.valve = NewValve(s.cfg, now())
}

// Turns exposes the turn manager for context inspection.
func (s *Supervisor) Turns() *TurnManager { return s.turns }

// Run executes the polling loop until ctx is cancelled. One tick at a
// time: a tick already inside dispatch completes before the loop
// exits, and a new tick never starts until the previous one — sleep
// included — is done.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervision started",
		"tick_interval", s.cfg.TickInterval.String(),
		"cooldown", s.cfg.Cooldown.String(),
		"max_stuck_time", s.cfg.MaxStuckTime.String(),
	)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervision stopped")
			return ctx.Err()
		case <-ticker.C:
			res := s.safeTick(ctx)
			s.logTick(res)
		}
	}
}

// safeTick runs one tick, converting any panic into a skipped tick so
// nothing can terminate the polling loop.
func (s *Supervisor) safeTick(ctx context.Context) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked, skipping", "panic", fmt.Sprint(r))
			res = TickResult{Failure: FailureInvariant}
			s.state.Release()
		}
	}()
	return s.Tick(ctx)
}

// Tick performs one full observe-decide-act cycle. Exported for the
// simulate REPL and tests; Run calls it on every ticker fire.
func (s *Supervisor) Tick(ctx context.Context) TickResult {
	now := s.now()

	if now.Before(s.pauseUntil) {
		return TickResult{Paused: true}
	}

	text, err := s.deps.Source.CaptureText(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Warn("capture failed", "error", err)
		}
		return TickResult{Failure: FailureCapture}
	}

	snap := Snapshot{Text: text, Timestamp: now, Valid: s.validator.Validate(text)}
	if !snap.Valid {
		// Rejected snapshots never touch history, counters, or timers.
		return TickResult{Snapshot: snap, Failure: FailureValidation}
	}

	prevDialog := s.tracker.LastText()
	upd := s.tracker.Observe(text, now)
	cls := s.classifier.Classify(text, upd)

	if upd.Changed {
		s.turns.ObserveContent(text, now, cls.Busy)
		s.valve.ResetRepeats()
	}

	res := TickResult{Snapshot: snap, Classification: cls}

	// Compute the intervention reason. Completed pre-empts everything;
	// busy means hands off; stuck past threshold warrants a nudge.
	switch cls.Signal {
	case SignalCompleted:
		res.Reason = cls.Reason
		res.Kind = KindCompleted
	case SignalStuck:
		res.Reason = fmt.Sprintf("content unchanged for %s", upd.Stable.Truncate(time.Second))
		res.Kind = KindTimeout
	default:
		// No reason to act. Feed the repeated-content backoff when the
		// screen keeps showing substantially the same text.
		if !upd.Changed && upd.Stable <= s.cfg.RepeatBackoff.SubThreshold &&
			s.guard.IsSubstantiallySame(text, prevDialog) {
			if pause := s.valve.NoteRepeat(now); pause > 0 {
				s.pauseUntil = now.Add(pause)
				s.logger.Warn("repeated content backoff, pausing polling",
					"pause", pause.String())
				res.Paused = true
			}
		}
		return res
	}

	suppressed, why := s.guard.ShouldSuppress(text, now, s.state, prevDialog)
	if suppressed {
		res.Suppressed = true
		res.SuppressReason = why

		if !s.valve.ShouldForce(now) {
			return res
		}
		// Hard escalation: everything has been suppressed past the
		// ceiling. Clear all suppression state and push one forced
		// intervention through, bypassing cooldown and dedup.
		stalled := s.valve.StalledFor(now).Truncate(time.Second)
		s.logger.Warn("forcing progress", "stalled", stalled.String(), "last_suppression", why)
		s.guard.ResetSuppression()
		s.state.Release()
		res.Forced = true
		res.Reason = fmt.Sprintf("forced progress: no successful intervention for %s", stalled)
		res.Kind = KindForced
	}

	s.dispatch(ctx, now, text, &res)
	return res
}

// dispatch runs the critical section: acquire the lock, generate the
// instruction (with fallback), execute it, and update intervention
// state only on success. The lock is released on every exit path.
func (s *Supervisor) dispatch(ctx context.Context, now time.Time, text string, res *TickResult) {
	if !s.state.TryAcquire() {
		s.logger.Error("dispatch lock already held, skipping tick")
		res.Failure = FailureInvariant
		return
	}
	defer s.state.Release()

	promptCtx := s.turns.LatestContext()

	instruction, err := s.deps.Generator.Generate(ctx, promptCtx, res.Reason, res.Kind)
	if err != nil || len(strings.TrimSpace(instruction)) < s.cfg.MinSnapshotLen {
		if err != nil {
			s.logger.Warn("generator failed, using fallback", "error", err)
		} else {
			s.logger.Warn("generator output too short, using fallback")
		}
		res.Failure = FailureGeneration
		instruction = s.cfg.FallbackInstruction
	}
	res.Instruction = instruction

	if err := s.deps.Executor.Dispatch(ctx, instruction); err != nil {
		// Logged, no retry this tick; intervention state stays
		// untouched so the cooldown clock does not move.
		s.logger.Error("dispatch failed", "error", err)
		res.Failure = FailureDispatch
		return
	}

	res.Dispatched = true
	s.state.LastInterventionAt = now
	s.state.LastInstruction = instruction
	s.state.LastFingerprint = Fingerprint(text)
	s.guard.MarkProcessed(text)
	s.valve.NoteProgress(now)
	s.tracker.Reset(now)

	if err := s.statusLog.Append(now, instruction, text); err != nil {
		s.logger.Warn("status log append failed", "error", err)
	}

	rec := Intervention{
		ID:          uuid.NewString(),
		Time:        now,
		Reason:      res.Reason,
		Kind:        res.Kind,
		Instruction: instruction,
		Forced:      res.Forced,
		OK:          true,
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.Record(ctx, rec); err != nil {
			s.logger.Warn("history record failed", "error", err)
		}
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(ctx, rec)
	}
}

func (s *Supervisor) logTick(res TickResult) {
	switch {
	case res.Paused:
		s.logger.Debug("tick paused")
	case res.Failure == FailureCapture:
		s.logger.Debug("tick skipped", "failure", res.Failure.String())
	case res.Failure == FailureValidation:
		s.logger.Debug("snapshot rejected")
	case res.Dispatched:
		s.logger.Info("intervention dispatched",
			"kind", res.Kind,
			"reason", res.Reason,
			"forced", res.Forced,
			"instruction", truncate(res.Instruction, 80),
		)
	case res.Suppressed:
		s.logger.Debug("intervention suppressed",
			"kind", res.Kind,
			"why", res.SuppressReason,
		)
	default:
		s.logger.Debug("tick idle", "signal", res.Classification.Signal.String())
	}
}
