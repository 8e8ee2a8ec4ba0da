// Package calibration measures the resting attention level and derives
// the trigger threshold from it.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/metrics"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const component = "calibration"

var (
	// ErrEmptyWindow means no sample was observed during the window.
	// The previous threshold stays in effect.
	ErrEmptyWindow = errors.New("calibration: no samples observed")
	// ErrBusy is returned by TryCalibrate while another calibration runs.
	ErrBusy = errors.New("calibration: already running")
)

// Options configures a Calibrator.
type Options struct {
	PollInterval time.Duration
	Margin       float64
	Clock        clockwork.Clock
	Events       events.Publisher
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// Calibrator samples the live value and replaces the threshold.
// Calibrations never overlap.
type Calibrator struct {
	live      *state.Live
	threshold *state.Threshold
	poll      time.Duration
	margin    float64
	clock     clockwork.Clock
	events    events.Publisher
	metrics   metrics.Recorder
	logger    *slog.Logger

	mu     sync.Mutex
	active atomic.Bool
}

// New creates a calibrator reading live and writing threshold.
func New(live *state.Live, threshold *state.Threshold, opts Options) *Calibrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Calibrator{
		live:      live,
		threshold: threshold,
		poll:      opts.PollInterval,
		margin:    opts.Margin,
		clock:     opts.Clock,
		events:    events.OrDiscard(opts.Events),
		metrics:   metrics.OrNoop(opts.Metrics),
		logger:    log.OrDefault(opts.Logger).With(log.Component(component)),
	}
}

// Calibrate samples for d and sets threshold = mean + margin.
//
// Every poll that finds a live value counts, so a value that did not change
// between polls is counted again. Polls before the first sample, or while
// the link is down, are not counted. If nothing was counted the result is
// ErrEmptyWindow and the previous threshold is kept. Cancelling ctx aborts
// the window and also keeps the previous threshold.
func (c *Calibrator) Calibrate(ctx context.Context, d time.Duration) (state.Calibration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calibrate(ctx, d)
}

// TryCalibrate is Calibrate, except that it returns ErrBusy instead of
// waiting for a running calibration.
func (c *Calibrator) TryCalibrate(ctx context.Context, d time.Duration) (state.Calibration, error) {
	if !c.mu.TryLock() {
		return state.Calibration{}, ErrBusy
	}
	defer c.mu.Unlock()
	return c.calibrate(ctx, d)
}

// Result is the outcome of a calibration started with Start.
type Result struct {
	Calibration state.Calibration
	Err         error
}

// Start begins a calibration in the background and returns at once. It
// returns ErrBusy if one is already running. The channel receives exactly
// one Result.
func (c *Calibrator) Start(ctx context.Context, d time.Duration) (<-chan Result, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	out := make(chan Result, 1)
	go func() {
		defer c.mu.Unlock()
		cal, err := c.calibrate(ctx, d)
		out <- Result{Calibration: cal, Err: err}
	}()
	return out, nil
}

// Active reports whether a calibration window is open.
func (c *Calibrator) Active() bool {
	return c.active.Load()
}

func (c *Calibrator) calibrate(ctx context.Context, d time.Duration) (state.Calibration, error) {
	c.active.Store(true)
	defer c.active.Store(false)

	id := uuid.NewString()
	logger := c.logger.With(log.Session(id))
	logger.Info("relax and clear your mind", log.Duration(d))
	c.events.Publish(events.Event{Type: events.CalibrationStarted, Component: component, Message: id})

	start := c.clock.Now()
	var sum float64
	var n int
	for c.clock.Since(start) < d {
		if s, ok := c.live.Load(); ok {
			sum += float64(s.Value)
			n++
		}
		select {
		case <-ctx.Done():
			c.fail(logger, start, n, "cancelled")
			return state.Calibration{}, fmt.Errorf("calibration cancelled: %w", ctx.Err())
		case <-c.clock.After(c.poll):
		}
	}
	elapsed := c.clock.Since(start)

	if n == 0 {
		err := fault.New(fault.CalibrationEmpty, component, "calibrate", ErrEmptyWindow)
		c.metrics.IncFault(string(fault.CalibrationEmpty))
		c.fail(logger, start, 0, err.Error())
		return state.Calibration{}, err
	}

	baseline := sum / float64(n)
	cal := state.Calibration{
		ID:          id,
		Baseline:    baseline,
		Margin:      c.margin,
		Threshold:   baseline + c.margin,
		Samples:     n,
		Duration:    elapsed,
		CompletedAt: c.clock.Now(),
	}
	c.threshold.Set(cal)

	c.metrics.SetThreshold(cal.Threshold)
	c.metrics.ObserveCalibration(elapsed, n, true)
	logger.Info("calibration complete", log.Baseline(cal.Baseline), log.Threshold(cal.Threshold), log.Samples(n))
	c.events.Publish(events.Event{
		Type:      events.CalibrationCompleted,
		Component: component,
		Baseline:  cal.Baseline,
		Threshold: cal.Threshold,
		Samples:   n,
		Message:   id,
	})
	return cal, nil
}

func (c *Calibrator) fail(logger *slog.Logger, start time.Time, n int, reason string) {
	c.metrics.ObserveCalibration(c.clock.Since(start), n, false)
	logger.Warn("calibration failed, keeping previous threshold", "reason", reason, log.Samples(n))
	c.events.Publish(events.Event{Type: events.CalibrationFailed, Component: component, Samples: n, Message: reason})
}
