package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const (
	poll     = 50 * time.Millisecond
	cooldown = 750 * time.Millisecond
)

// mockClicker records click times on the fake clock.
type mockClicker struct {
	mu    sync.Mutex
	clock clockwork.Clock
	at    []time.Duration
	start time.Time
	err   error
}

func (m *mockClicker) Click(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.at = append(m.at, m.clock.Since(m.start))
	return nil
}

func (m *mockClicker) times() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.at...)
}

type harness struct {
	live    *state.Live
	th      *state.Threshold
	fc      *clockwork.FakeClock
	clicker *mockClicker
	rec     *events.Recorder
	engine  *Engine
}

func newHarness() *harness {
	fc := clockwork.NewFakeClock()
	h := &harness{
		live:    state.NewLive(nil),
		th:      &state.Threshold{},
		fc:      fc,
		clicker: &mockClicker{clock: fc, start: fc.Now()},
		rec:     &events.Recorder{},
	}
	h.engine = New(h.live, h.th, h.clicker, Options{
		PollInterval: poll,
		Cooldown:     cooldown,
		Clock:        fc,
		Events:       h.rec,
		Logger:       log.Discard(),
	})
	return h
}

// runFor starts the engine, advances the fake clock through d in poll
// steps, then stops it and returns Run's result.
func (h *harness) runFor(t *testing.T, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	for elapsed := time.Duration(0); elapsed < d; elapsed += poll {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
		err := h.fc.BlockUntilContext(waitCtx, 1)
		waitCancel()
		if err != nil {
			// Run returned on its own.
			break
		}
		h.fc.Advance(poll)
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
		return nil
	}
}

func TestEngine_SustainedSpikeClicksOncePerCooldown(t *testing.T) {
	h := newHarness()
	h.th.Set(state.Calibration{Threshold: 50})
	h.live.Store(80)

	if err := h.runFor(t, 2*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []time.Duration{0, cooldown, 2 * cooldown}
	got := h.clicker.times()
	if len(got) != len(want) {
		t.Fatalf("clicks at %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("click %d at %v, want %v", i, got[i], want[i])
		}
	}
	if h.engine.Clicks() != 3 {
		t.Errorf("Clicks() = %d, want 3", h.engine.Clicks())
	}
	if n := len(h.rec.OfType(events.Click)); n != 3 {
		t.Errorf("click events = %d, want 3", n)
	}
}

func TestEngine_NoClick(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"value equal to threshold", func(h *harness) {
			h.th.Set(state.Calibration{Threshold: 50})
			h.live.Store(50)
		}},
		{"value below threshold", func(h *harness) {
			h.th.Set(state.Calibration{Threshold: 50})
			h.live.Store(12)
		}},
		{"no calibration yet", func(h *harness) {
			h.live.Store(99)
		}},
		{"no sample yet", func(h *harness) {
			h.th.Set(state.Calibration{Threshold: 0})
		}},
		{"link lost", func(h *harness) {
			h.th.Set(state.Calibration{Threshold: 50})
			h.live.Store(90)
			h.live.Invalidate()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.setup(h)
			if err := h.runFor(t, 500*time.Millisecond); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := h.clicker.times(); len(got) != 0 {
				t.Errorf("unexpected clicks at %v", got)
			}
			if h.engine.State() != Idle {
				t.Errorf("state = %v, want idle", h.engine.State())
			}
		})
	}
}

func TestEngine_CooldownIgnoresValueDrop(t *testing.T) {
	h := newHarness()
	h.th.Set(state.Calibration{Threshold: 50})
	h.live.Store(80)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := h.fc.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	if h.engine.State() != Cooldown {
		t.Fatalf("state = %v after a spike, want cooldown", h.engine.State())
	}

	// Drop and spike again inside the cooldown window: no second click.
	h.live.Store(10)
	h.fc.Advance(poll)
	if err := h.fc.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	h.live.Store(90)
	h.fc.Advance(poll)
	if err := h.fc.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	if n := len(h.clicker.times()); n != 1 {
		t.Errorf("clicks = %d, want 1", n)
	}
}

func TestEngine_ThresholdReadEveryPoll(t *testing.T) {
	h := newHarness()
	h.th.Set(state.Calibration{Threshold: 90})
	h.live.Store(80)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := h.fc.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	h.th.Set(state.Calibration{Threshold: 60})
	h.fc.Advance(poll)
	if err := h.fc.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	got := h.clicker.times()
	if len(got) != 1 || got[0] != poll {
		t.Errorf("clicks at %v, want one at %v", got, poll)
	}
}

func TestEngine_WriteFailureIsFatal(t *testing.T) {
	h := newHarness()
	boom := errors.New("write: broken pipe")
	h.clicker.err = fault.New(fault.ActuatorWrite, "actuator", "send CLICK", boom)
	h.th.Set(state.Calibration{Threshold: 50})
	h.live.Store(80)

	err := h.engine.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want %v", err, boom)
	}
	if !fault.IsFatal(err) {
		t.Error("write failure must carry a fatal fault kind")
	}
	if len(h.rec.OfType(events.Fault)) != 1 {
		t.Error("expected a fault event")
	}
}

func TestEngine_UnclassifiedClickErrorIsWrapped(t *testing.T) {
	h := newHarness()
	h.clicker.err = errors.New("eof")
	h.th.Set(state.Calibration{Threshold: 0})
	h.live.Store(1)

	err := h.engine.Run(context.Background())
	if kind, _ := fault.KindOf(err); kind != fault.ActuatorWrite {
		t.Errorf("kind = %q, want %q", kind, fault.ActuatorWrite)
	}
}

func TestMode_String(t *testing.T) {
	if Idle.String() != "idle" || Cooldown.String() != "cooldown" {
		t.Error("unexpected mode names")
	}
}
