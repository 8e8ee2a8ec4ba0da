package calibration

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const poll = 100 * time.Millisecond

type fixture struct {
	live  *state.Live
	th    *state.Threshold
	fc    *clockwork.FakeClock
	rec   *events.Recorder
	calib *Calibrator
}

func newFixture() *fixture {
	f := &fixture{
		live: state.NewLive(nil),
		th:   &state.Threshold{},
		fc:   clockwork.NewFakeClock(),
		rec:  &events.Recorder{},
	}
	f.calib = New(f.live, f.th, Options{
		PollInterval: poll,
		Margin:       20,
		Clock:        f.fc,
		Events:       f.rec,
		Logger:       log.Discard(),
	})
	return f
}

type result struct {
	cal state.Calibration
	err error
}

func (f *fixture) start(ctx context.Context, d time.Duration) <-chan result {
	out := make(chan result, 1)
	go func() {
		cal, err := f.calib.Calibrate(ctx, d)
		out <- result{cal, err}
	}()
	return out
}

// step waits for the calibrator to park on the clock, runs before, then
// advances one poll interval.
func (f *fixture) step(t *testing.T, before func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.fc.BlockUntilContext(ctx, 1))
	if before != nil {
		before()
	}
	f.fc.Advance(poll)
}

func wait(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("calibration did not finish")
		return result{}
	}
}

func TestCalibrate_MeanPlusMargin(t *testing.T) {
	f := newFixture()
	f.live.Store(10)

	done := f.start(context.Background(), time.Second)
	for k := 0; k < 10; k++ {
		next := (k + 2) * 10
		f.step(t, func() { f.live.Store(next) })
	}
	r := wait(t, done)

	require.NoError(t, r.err)
	assert.Equal(t, 10, r.cal.Samples, "one sample per poll over the window")
	assert.InDelta(t, 55.0, r.cal.Baseline, 1e-9)
	assert.InDelta(t, 75.0, r.cal.Threshold, 1e-9)
	assert.Equal(t, time.Second, r.cal.Duration)
	assert.NotEmpty(t, r.cal.ID)

	got, ok := f.th.Load()
	require.True(t, ok)
	assert.Equal(t, r.cal, got)
	assert.Len(t, f.rec.OfType(events.CalibrationCompleted), 1)
}

func TestCalibrate_StaleValueCountedEveryPoll(t *testing.T) {
	f := newFixture()
	f.live.Store(30)

	done := f.start(context.Background(), time.Second)
	for k := 0; k < 10; k++ {
		f.step(t, nil)
	}
	r := wait(t, done)

	require.NoError(t, r.err)
	assert.Equal(t, 10, r.cal.Samples)
	assert.Equal(t, 30.0, r.cal.Baseline)
	assert.Equal(t, 50.0, r.cal.Threshold)
}

func TestCalibrate_ExtremeValuesDoNotWrap(t *testing.T) {
	f := newFixture()
	f.live.Store(math.MaxInt)

	done := f.start(context.Background(), 3*poll)
	for k := 0; k < 3; k++ {
		f.step(t, nil)
	}
	r := wait(t, done)

	require.NoError(t, r.err)
	assert.Equal(t, 3, r.cal.Samples)
	assert.InEpsilon(t, float64(math.MaxInt), r.cal.Baseline, 1e-9)
}

func TestCalibrate_PollsBeforeFirstSampleNotCounted(t *testing.T) {
	f := newFixture()

	done := f.start(context.Background(), time.Second)
	for k := 0; k < 10; k++ {
		k := k
		f.step(t, func() {
			if k == 4 {
				f.live.Store(40)
			}
		})
	}
	r := wait(t, done)

	require.NoError(t, r.err)
	assert.Equal(t, 5, r.cal.Samples)
	assert.Equal(t, 40.0, r.cal.Baseline)
}

func TestCalibrate_EmptyWindowKeepsPriorThreshold(t *testing.T) {
	f := newFixture()
	prior := state.Calibration{ID: "prior", Baseline: 35, Margin: 20, Threshold: 55, Samples: 100}
	f.th.Set(prior)

	done := f.start(context.Background(), 300*time.Millisecond)
	for k := 0; k < 3; k++ {
		f.step(t, nil)
	}
	r := wait(t, done)

	require.ErrorIs(t, r.err, ErrEmptyWindow)
	kind, ok := fault.KindOf(r.err)
	require.True(t, ok)
	assert.Equal(t, fault.CalibrationEmpty, kind)
	assert.False(t, fault.IsFatal(r.err))

	got, _ := f.th.Load()
	assert.Equal(t, prior, got)
	assert.Len(t, f.rec.OfType(events.CalibrationFailed), 1)
}

func TestCalibrate_ZeroDurationIsEmpty(t *testing.T) {
	f := newFixture()
	f.live.Store(50)

	_, err := f.calib.Calibrate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrEmptyWindow)
	_, ok := f.th.Load()
	assert.False(t, ok)
}

func TestCalibrate_CancelKeepsPriorThreshold(t *testing.T) {
	f := newFixture()
	f.live.Store(90)
	prior := state.Calibration{ID: "prior", Threshold: 55}
	f.th.Set(prior)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.start(ctx, 10*time.Second)
	f.step(t, nil)
	cancel()
	r := wait(t, done)

	assert.True(t, errors.Is(r.err, context.Canceled))
	got, _ := f.th.Load()
	assert.Equal(t, "prior", got.ID)
}

func TestTryCalibrate_Busy(t *testing.T) {
	f := newFixture()
	f.live.Store(20)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.start(ctx, 10*time.Second)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, f.fc.BlockUntilContext(waitCtx, 1))

	_, err := f.calib.TryCalibrate(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	wait(t, done)

	// Free again: a zero-length window returns immediately.
	_, err = f.calib.TryCalibrate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestStart_RunsInBackground(t *testing.T) {
	f := newFixture()
	f.live.Store(40)

	results, err := f.calib.Start(context.Background(), 3*poll)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.fc.BlockUntilContext(waitCtx, 1))

	_, err = f.calib.Start(context.Background(), poll)
	assert.ErrorIs(t, err, ErrBusy, "a second start while running must be rejected")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.fc.BlockUntilContext(waitCtx, 1))
		f.fc.Advance(poll)
	}

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, 60.0, r.Calibration.Threshold)
		assert.Equal(t, 3, r.Calibration.Samples)
	case <-time.After(time.Second):
		t.Fatal("background calibration did not finish")
	}
	assert.Equal(t, 60.0, f.th.Value())
}
