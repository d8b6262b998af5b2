package supervisor

import (
	"strings"
	"testing"
	"time"
)

func newTestTracker(start time.Time) *Tracker {
	cfg := DefaultConfig()
	cfg.normalize()
	c := NewClassifier(cfg)
	return NewTracker(cfg, start, c.HasBusyMarker)
}

func TestTracker_UnchangedAccumulatesStability(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(start)

	text := "cursor showing the same reply"
	upd := tr.Observe(text, start)
	if !upd.Changed {
		t.Fatal("first observation should count as a change")
	}

	upd = tr.Observe(text, start.Add(45*time.Second))
	if upd.Changed {
		t.Error("identical text must not count as a change")
	}
	if upd.Stable != 45*time.Second {
		t.Errorf("expected 45s stable, got %s", upd.Stable)
	}
}

func TestTracker_GrowthWithBusyMarkerIsNotAChange(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(start)

	tr.Observe("Generating response for your request", start)

	// Strictly growing output under a busy marker: the stall clock
	// resets every tick and nothing is appended to history.
	text := "Generating response for your request"
	now := start
	histBefore := tr.History().Len()
	for i := 0; i < 5; i++ {
		text += strings.Repeat(" more generated output arrives here", 3)
		now = now.Add(20 * time.Second)
		upd := tr.Observe(text, now)
		if upd.Changed {
			t.Fatalf("iteration %d: growth under busy marker reported as change", i)
		}
		if upd.Stable != 0 {
			t.Fatalf("iteration %d: expected stability reset, got %s", i, upd.Stable)
		}
	}
	if tr.History().Len() != histBefore {
		t.Error("active generation must not enter dialog history")
	}
}

func TestTracker_ShrinkIsInterfaceRefresh(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(start)

	tr.Observe("a long reply with plenty of detail in it", start)
	histBefore := tr.History().Len()

	upd := tr.Observe("a short screen", start.Add(20*time.Second))
	if upd.Changed {
		t.Error("shrinking content should read as an interface refresh")
	}
	if upd.Stable != 0 {
		t.Errorf("expected stability reset on shrink, got %s", upd.Stable)
	}
	if tr.History().Len() != histBefore {
		t.Error("interface refresh must not enter dialog history")
	}
}

func TestTracker_RealChangeAppendsHistory(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(start)

	tr.Observe("first distinct reply from the agent", start)
	upd := tr.Observe("second distinct reply, a bit longer", start.Add(20*time.Second))
	if !upd.Changed {
		t.Fatal("expected a real change")
	}
	if tr.History().Len() != 2 {
		t.Errorf("expected 2 history entries, got %d", tr.History().Len())
	}
	if tr.LastText() != "second distinct reply, a bit longer" {
		t.Errorf("unexpected last text: %q", tr.LastText())
	}
}

func TestTracker_ResetRestartsStallClock(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(start)

	text := "frozen reply text on the screen"
	tr.Observe(text, start)
	tr.Reset(start.Add(40 * time.Second))

	upd := tr.Observe(text, start.Add(50*time.Second))
	if upd.Stable != 10*time.Second {
		t.Errorf("expected 10s stable after reset, got %s", upd.Stable)
	}
}

func TestDialogHistory_TrimsOldestFirst(t *testing.T) {
	t.Parallel()
	h := NewDialogHistory(5, 3)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		h.Append(DialogEntry{Timestamp: base.Add(time.Duration(i) * time.Minute), Text: string(rune('a' + i))})
	}

	if h.Len() != 3 {
		t.Fatalf("expected trim to 3 entries, got %d", h.Len())
	}
	if h.Last().Text != "f" {
		t.Errorf("expected newest entry retained, got %q", h.Last().Text)
	}
}
