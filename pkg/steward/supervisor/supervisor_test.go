package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSource struct {
	text string
	err  error
}

func (f *fakeSource) CaptureText(context.Context) (string, error) {
	return f.text, f.err
}

type fakeGenerator struct {
	out         string
	err         error
	calls       int
	lastKind    string
	lastReason  string
	lastContext string
}

func (f *fakeGenerator) Generate(_ context.Context, promptContext, reason, kind string) (string, error) {
	f.calls++
	f.lastContext = promptContext
	f.lastReason = reason
	f.lastKind = kind
	return f.out, f.err
}

type fakeExecutor struct {
	err  error
	sent []string
}

func (f *fakeExecutor) Dispatch(_ context.Context, instruction string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, instruction)
	return nil
}

type fakeRecorder struct {
	recs []Intervention
}

func (f *fakeRecorder) Record(_ context.Context, rec Intervention) error {
	f.recs = append(f.recs, rec)
	return nil
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, string, string, string) (string, error) {
	panic("generator exploded")
}

func newTestSupervisor(t *testing.T, deps Deps) (*Supervisor, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	cfg := DefaultConfig()
	cfg.StatusLog.Path = filepath.Join(t.TempDir(), "status.log")

	s := New(cfg, deps, slog.Default())
	s.SetClock(clk.Now)
	return s, clk
}

func TestSupervisor_ReviewChangesDispatches(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	gen := &fakeGenerator{out: "Please proceed with the next planned step now"}
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec, Recorder: rec})

	res := s.Tick(context.Background())

	if !res.Dispatched {
		t.Fatalf("expected a dispatch, got %+v", res)
	}
	if res.Kind != KindCompleted {
		t.Errorf("expected kind %q, got %q", KindCompleted, res.Kind)
	}
	if len(exec.sent) != 1 || exec.sent[0] != gen.out {
		t.Errorf("executor received %v", exec.sent)
	}
	if st := s.State(); !st.LastInterventionAt.Equal(clk.Now()) {
		t.Errorf("last intervention time not updated: %s", st.LastInterventionAt)
	}
	if len(rec.recs) != 1 || rec.recs[0].ID == "" || !rec.recs[0].OK {
		t.Errorf("recorder got %+v", rec.recs)
	}
	if gen.lastContext == "" {
		t.Error("generator should receive a context string, even a placeholder")
	}
}

func TestSupervisor_BusyContentIsLeftAlone(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Generating response..."}
	gen := &fakeGenerator{out: "unused instruction text here"}
	exec := &fakeExecutor{}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	s.Tick(context.Background())
	clk.Advance(45 * time.Second)
	res := s.Tick(context.Background())

	if res.Dispatched {
		t.Fatal("busy content must not trigger an intervention")
	}
	if !res.Classification.Busy {
		t.Error("expected busy reading")
	}
	if res.Classification.Stuck {
		t.Error("45s under a busy marker is below the 60s stall threshold")
	}
}

func TestSupervisor_StuckContentInterventionThenSuppression(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Let me think about this problem here"}
	gen := &fakeGenerator{out: "Please pick one approach and start implementing it"}
	exec := &fakeExecutor{}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	// First sighting is a change, nothing fires.
	res := s.Tick(context.Background())
	if res.Dispatched {
		t.Fatal("fresh content must not dispatch")
	}

	// Unchanged past the 30s stall threshold: one intervention.
	clk.Advance(31 * time.Second)
	res = s.Tick(context.Background())
	if !res.Dispatched || res.Kind != KindTimeout {
		t.Fatalf("expected a stall intervention, got %+v", res)
	}

	// Same content again, cooldown respected: suppressed, not re-sent.
	for i := 0; i < 2; i++ {
		clk.Advance(31 * time.Second)
		res = s.Tick(context.Background())
		if res.Dispatched {
			t.Fatalf("repeat %d re-dispatched on identical content", i+1)
		}
		if !res.Suppressed {
			t.Fatalf("repeat %d not suppressed: %+v", i+1, res)
		}
	}
	if len(exec.sent) != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", len(exec.sent))
	}
}

func TestSupervisor_ForcedProgressAfterStallCeiling(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Let me think about this problem here"}
	gen := &fakeGenerator{out: "Please pick one approach and start implementing it"}
	exec := &fakeExecutor{}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	s.Tick(context.Background())
	clk.Advance(31 * time.Second)
	if res := s.Tick(context.Background()); !res.Dispatched {
		t.Fatalf("expected initial stall intervention, got %+v", res)
	}

	// All subsequent ticks are suppressed by the processed fingerprint
	// until the hard stall ceiling passes.
	var forced TickResult
	for i := 0; i < 4; i++ {
		clk.Advance(31 * time.Second)
		forced = s.Tick(context.Background())
		if forced.Forced {
			break
		}
		if forced.Dispatched {
			t.Fatalf("tick %d dispatched without force", i+1)
		}
	}

	if !forced.Forced || !forced.Dispatched {
		t.Fatalf("expected a forced intervention past the ceiling, got %+v", forced)
	}
	if forced.Kind != KindForced {
		t.Errorf("expected kind %q, got %q", KindForced, forced.Kind)
	}
	if len(exec.sent) != 2 {
		t.Fatalf("expected exactly 2 dispatches, got %d", len(exec.sent))
	}

	// The force is a one-shot: the next suppressed tick stays idle.
	clk.Advance(31 * time.Second)
	res := s.Tick(context.Background())
	if res.Dispatched || res.Forced {
		t.Errorf("force must not repeat immediately: %+v", res)
	}
}

func TestSupervisor_EchoOfOwnInstructionIgnored(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	gen := &fakeGenerator{out: "Please continue with the next feature"}
	exec := &fakeExecutor{}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	if res := s.Tick(context.Background()); !res.Dispatched {
		t.Fatal("setup dispatch did not fire")
	}

	// The chat now contains our own instruction plus a completion
	// phrase. Without echo detection this would fire again.
	src.text = "Done. Please continue with the next feature"
	clk.Advance(31 * time.Second)
	res := s.Tick(context.Background())

	if res.Dispatched {
		t.Fatal("echo of the last sent instruction must not dispatch")
	}
	if !res.Suppressed || res.SuppressReason != "echo of last instruction" {
		t.Errorf("expected echo suppression, got %+v", res)
	}
}

func TestSupervisor_CaptureFailureSkipsTick(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: errors.New("screen capture unavailable")}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: &fakeGenerator{}, Executor: &fakeExecutor{}})

	res := s.Tick(context.Background())
	if res.Failure != FailureCapture {
		t.Errorf("expected capture failure, got %s", res.Failure)
	}

	src.err = nil
	src.text = "   "
	res = s.Tick(context.Background())
	if res.Failure != FailureCapture {
		t.Errorf("expected capture failure on blank text, got %s", res.Failure)
	}
}

func TestSupervisor_InvalidSnapshotTouchesNothing(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "region shows dark_content right now"}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: &fakeGenerator{}, Executor: &fakeExecutor{}})

	res := s.Tick(context.Background())
	if res.Failure != FailureValidation {
		t.Fatalf("expected validation rejection, got %s", res.Failure)
	}
	if s.tracker.History().Len() != 0 {
		t.Error("rejected snapshot leaked into dialog history")
	}
	if s.tracker.LastText() != "" {
		t.Error("rejected snapshot updated the stability tracker")
	}
}

func TestSupervisor_GeneratorFailureFallsBack(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	exec := &fakeExecutor{}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	res := s.Tick(context.Background())
	if !res.Dispatched {
		t.Fatal("fallback instruction should still dispatch")
	}
	if res.Failure != FailureGeneration {
		t.Errorf("expected generation failure marker, got %s", res.Failure)
	}
	if len(exec.sent) != 1 || exec.sent[0] != s.cfg.FallbackInstruction {
		t.Errorf("expected fallback instruction, got %v", exec.sent)
	}
}

func TestSupervisor_ShortGeneratorOutputFallsBack(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	gen := &fakeGenerator{out: "ok"}
	exec := &fakeExecutor{}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	res := s.Tick(context.Background())
	if !res.Dispatched || exec.sent[0] != s.cfg.FallbackInstruction {
		t.Errorf("near-empty generator output should fall back, got %+v", res)
	}
}

func TestSupervisor_DispatchFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	gen := &fakeGenerator{out: "Please proceed with the next planned step now"}
	exec := &fakeExecutor{err: errors.New("input channel closed")}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: gen, Executor: exec})

	res := s.Tick(context.Background())
	if res.Dispatched {
		t.Fatal("failed dispatch reported as success")
	}
	if res.Failure != FailureDispatch {
		t.Errorf("expected dispatch failure, got %s", res.Failure)
	}

	st := s.State()
	if !st.LastInterventionAt.IsZero() {
		t.Error("cooldown clock moved on a failed dispatch")
	}
	if st.InFlight {
		t.Error("lock not released after a failed dispatch")
	}
}

func TestSupervisor_RepeatedContentBackoffPausesPolling(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "an ordinary reply sitting on the screen"}
	s, clk := newTestSupervisor(t, Deps{Source: src, Generator: &fakeGenerator{}, Executor: &fakeExecutor{}})

	s.Tick(context.Background())

	// Five sub-threshold repeats of the same content trigger a 30s
	// polling pause.
	var res TickResult
	for i := 0; i < 5; i++ {
		clk.Advance(5 * time.Second)
		res = s.Tick(context.Background())
		if res.Dispatched {
			t.Fatalf("repeat %d dispatched unexpectedly", i+1)
		}
	}
	if !res.Paused {
		t.Fatal("expected a polling pause after 5 sub-threshold repeats")
	}

	clk.Advance(5 * time.Second)
	if res := s.Tick(context.Background()); !res.Paused {
		t.Error("tick inside the pause window should be skipped")
	}
}

func TestSupervisor_PanicInCollaboratorIsContained(t *testing.T) {
	t.Parallel()
	src := &fakeSource{text: "Review Changes"}
	s, _ := newTestSupervisor(t, Deps{Source: src, Generator: panicGenerator{}, Executor: &fakeExecutor{}})

	res := s.safeTick(context.Background())
	if res.Failure != FailureInvariant {
		t.Errorf("expected invariant failure after panic, got %s", res.Failure)
	}
	if s.State().InFlight {
		t.Error("lock wedged after a panicking collaborator")
	}
}
