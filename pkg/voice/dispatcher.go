package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/internal/retry"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/metrics"
	"github.com/teslashibe/go-mindclick/pkg/speech"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const component = "voice"

// Calibrator runs one calibration. *calibration.Calibrator satisfies it.
type Calibrator interface {
	Calibrate(ctx context.Context, d time.Duration) (state.Calibration, error)
}

// Stopper ends the run. *shutdown.Coordinator satisfies it.
type Stopper interface {
	Stop(reason string) bool
}

// Options configures a Dispatcher.
type Options struct {
	CalibrationDuration time.Duration
	// ListenTimeout bounds one Listen call; a timeout just starts the next one.
	ListenTimeout time.Duration
	// Backoff is applied after consecutive transcription service failures.
	Backoff retry.Policy
	Clock   clockwork.Clock
	Events  events.Publisher
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// Dispatcher listens for commands and executes them one at a time.
type Dispatcher struct {
	listener   speech.Listener
	matcher    *Matcher
	calibrator Calibrator
	stopper    Stopper

	duration      time.Duration
	listenTimeout time.Duration
	backoff       retry.Policy
	clock         clockwork.Clock
	events        events.Publisher
	metrics       metrics.Recorder
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(l speech.Listener, m *Matcher, c Calibrator, s Stopper, opts Options) *Dispatcher {
	if m == nil {
		m = DefaultMatcher()
	}
	if opts.CalibrationDuration <= 0 {
		opts.CalibrationDuration = 10 * time.Second
	}
	if opts.Backoff.Initial <= 0 {
		opts.Backoff = retry.DefaultPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		listener:      l,
		matcher:       m,
		calibrator:    c,
		stopper:       s,
		duration:      opts.CalibrationDuration,
		listenTimeout: opts.ListenTimeout,
		backoff:       opts.Backoff,
		clock:         opts.Clock,
		events:        events.OrDiscard(opts.Events),
		metrics:       metrics.OrNoop(opts.Metrics),
		logger:        log.OrDefault(opts.Logger).With(log.Component(component)),
	}
}

// Run listens until a stop command, an exhausted input, or ctx is done.
// Speech faults never end the loop. A calibrate command blocks listening
// for the whole calibration window.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("voice commands online", "commands", d.commandList())

	failures := 0
	for ctx.Err() == nil {
		text, err := d.listen(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, speech.ErrNoInput):
				d.logger.Warn("speech input closed, voice loop ending")
				return nil
			case errors.Is(err, speech.ErrUnintelligible):
				d.metrics.IncFault(string(fault.SpeechUnintelligible))
				d.logger.Debug("could not understand audio")
				continue
			}

			failures++
			f := fault.New(fault.SpeechUnreachable, component, "listen", err)
			d.metrics.IncFault(string(f.Kind))
			d.logger.Warn("could not contact speech service", log.Fault(string(f.Kind)), log.Err(err), "failures", failures)
			d.events.Publish(events.Event{Type: events.VoiceError, Component: component, Fault: string(f.Kind), Message: err.Error()})
			if !d.wait(ctx, d.backoff.Delay(failures)) {
				return nil
			}
			continue
		}
		failures = 0

		d.logger.Info("heard", "transcript", text)
		cmd, ok := d.matcher.Match(text)
		if !ok {
			continue
		}
		d.metrics.IncVoiceCommand(string(cmd))
		d.events.Publish(events.Event{Type: events.VoiceCommand, Component: component, Command: string(cmd), Transcript: text})

		switch cmd {
		case Calibrate:
			if _, err := d.calibrator.Calibrate(ctx, d.duration); err != nil && ctx.Err() == nil {
				d.logger.Warn("calibration did not complete", log.Err(err))
			}
		case Stop:
			d.logger.Info("stop command received, shutting down")
			d.stopper.Stop("voice command")
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) listen(ctx context.Context) (string, error) {
	if d.listenTimeout <= 0 {
		return d.listener.Listen(ctx)
	}
	lctx, cancel := context.WithTimeout(ctx, d.listenTimeout)
	defer cancel()
	return d.listener.Listen(lctx)
}

func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-d.clock.After(delay):
		return true
	}
}

func (d *Dispatcher) commandList() []string {
	var out []string
	for _, r := range d.matcher.Rules() {
		out = append(out, r.Keywords...)
	}
	return out
}
