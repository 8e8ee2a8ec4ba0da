// Package mindclick wires the headset reader, calibrator, trigger engine,
// actuator channel and voice dispatcher into one running system.
package mindclick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-mindclick/internal/config"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/actuator"
	"github.com/teslashibe/go-mindclick/pkg/audioio"
	"github.com/teslashibe/go-mindclick/pkg/calibration"
	"github.com/teslashibe/go-mindclick/pkg/console"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/headset"
	"github.com/teslashibe/go-mindclick/pkg/metrics"
	"github.com/teslashibe/go-mindclick/pkg/serialport"
	"github.com/teslashibe/go-mindclick/pkg/shutdown"
	"github.com/teslashibe/go-mindclick/pkg/speech"
	"github.com/teslashibe/go-mindclick/pkg/state"
	"github.com/teslashibe/go-mindclick/pkg/trigger"
	"github.com/teslashibe/go-mindclick/pkg/voice"
	"github.com/teslashibe/go-mindclick/pkg/web"
)

// Mode selects what Run does.
type Mode int

const (
	// ModeRun is the full system.
	ModeRun Mode = iota
	// ModeMonitor prints attention values only.
	ModeMonitor
	// ModeCalibrate runs one calibration and exits.
	ModeCalibrate
	// ModeClick sends one click command and exits.
	ModeClick
)

func (m Mode) needsHeadset() bool  { return m != ModeClick }
func (m Mode) needsActuator() bool { return m == ModeRun || m == ModeClick }

// Options are the non-config dependencies of an App. Zero values are usable.
type Options struct {
	Mode   Mode
	Stdout io.Writer
	Stdin  io.Reader
	Logger *slog.Logger
	Clock  clockwork.Clock
	// Dial opens serial devices; default serialport.Dial.
	Dial serialport.DialFunc
	// Listener replaces the configured speech backend.
	Listener speech.Listener
	// ShowSamples prints every attention value on the console.
	ShowSamples bool
}

// App is the main mindclick application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	clock   clockwork.Clock
	session string
	started time.Time

	live      *state.Live
	threshold *state.Threshold

	headsetPort  *serialport.Port
	actuatorPort *serialport.Port

	bus      *events.Bus
	ring     *events.Ring
	nats     *events.NATSSink
	registry *prometheus.Registry
	metrics  metrics.Recorder

	reader     *headset.Reader
	calibrator *calibration.Calibrator
	channel    *actuator.Channel
	engine     *trigger.Engine
	matcher    *voice.Matcher
	listener   speech.Listener
	webServer  *web.Server

	coord    atomic.Pointer[shutdown.Coordinator]
	closers  []io.Closer
	shutdown sync.Once
}

// New creates an application. The configuration is validated here and
// not changed afterwards.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Dial == nil {
		opts.Dial = serialport.Dial
	}

	session := uuid.NewString()
	return &App{
		cfg:       cfg,
		opts:      opts,
		logger:    log.OrDefault(opts.Logger).With(log.Session(session)),
		clock:     opts.Clock,
		session:   session,
		live:      state.NewLive(opts.Clock.Now),
		threshold: &state.Threshold{},
	}, nil
}

// Session returns the id stamped on this run's events.
func (a *App) Session() string {
	return a.session
}

// Init opens transports and builds components for the selected mode.
// Call this after New() and before Run(). On error, Shutdown releases
// whatever was opened.
func (a *App) Init(ctx context.Context) error {
	a.initObservability()

	if err := a.openPorts(ctx); err != nil {
		return err
	}

	if a.opts.Mode.needsHeadset() {
		reconnect := a.cfg.Headset.Reconnect.Policy()
		a.reader = headset.NewReader(a.headsetPort, a.live, headset.Options{
			Reconnect: &reconnect,
			Clock:     a.clock,
			Events:    a.bus,
			Metrics:   a.metrics,
			Logger:    a.logger,
		})
		a.calibrator = calibration.New(a.live, a.threshold, calibration.Options{
			PollInterval: a.cfg.Calibration.PollInterval,
			Margin:       a.cfg.Calibration.Margin,
			Clock:        a.clock,
			Events:       a.bus,
			Metrics:      a.metrics,
			Logger:       a.logger,
		})
	}

	if a.opts.Mode.needsActuator() {
		a.channel = actuator.New(a.actuatorPort, actuator.Command(a.cfg.Actuator.Command), a.logger)
	}

	if a.opts.Mode != ModeRun {
		return nil
	}

	a.engine = trigger.New(a.live, a.threshold, a.channel, trigger.Options{
		PollInterval: a.cfg.Trigger.PollInterval,
		Cooldown:     a.cfg.Trigger.Cooldown,
		Clock:        a.clock,
		Events:       a.bus,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})

	tie, err := voice.ParseTieBreak(string(a.cfg.Voice.TieBreak))
	if err != nil {
		return err
	}
	a.matcher = voice.NewMatcher(a.cfg.Voice.CalibrateWords, a.cfg.Voice.StopWords, tie)

	if err := a.initSpeech(ctx); err != nil {
		return fmt.Errorf("speech init: %w", err)
	}

	if a.cfg.Dashboard.Addr != "" {
		a.webServer = web.NewServer(a, web.Options{
			Addr:    a.cfg.Dashboard.Addr,
			Events:  a.ring,
			Metrics: metrics.HTTPHandler(a.registry),
			Logger:  a.logger,
		})
		a.bus.Attach(events.Except(a.webServer.Sink(), events.Sample), 0)
	}
	return nil
}

func (a *App) initObservability() {
	a.registry = metrics.NewRegistry()
	a.metrics = metrics.NewPrometheusRecorder(a.registry)

	a.bus = events.NewBus(a.session, a.logger)
	a.ring = events.NewRing(200)
	a.bus.Attach(events.NewLogSink(a.logger), 0)
	a.bus.Attach(console.NewSink(a.opts.Stdout, a.opts.ShowSamples || a.opts.Mode == ModeMonitor), 0)
	a.bus.Attach(events.Except(a.ring, events.Sample), 0)

	if url := a.cfg.Events.NATSURL; url != "" {
		sink, err := events.DialNATS(url, a.cfg.Events.Subject, a.logger)
		if err != nil {
			// Event export is optional; the control loop runs without it.
			a.logger.Warn("NATS event export disabled", log.Err(err))
		} else {
			a.nats = sink
			a.bus.Attach(sink, 0)
		}
	}
}

func (a *App) openPorts(ctx context.Context) error {
	open := func(sc config.SerialConfig) (*serialport.Port, error) {
		return serialport.OpenWith(ctx, serialport.Config{
			Device:      sc.Device,
			Baud:        sc.Baud,
			ReadTimeout: sc.ReadTimeout,
			SettleDelay: sc.SettleDelay,
		}, a.opts.Dial)
	}

	if a.opts.Mode.needsHeadset() {
		p, err := open(a.cfg.Headset.SerialConfig)
		if err != nil {
			return fmt.Errorf("headset: %w", err)
		}
		a.headsetPort = p
		a.closers = append(a.closers, p)
	}
	if a.opts.Mode.needsActuator() {
		if a.headsetPort != nil && a.cfg.SharedPort() {
			a.actuatorPort = a.headsetPort
			return nil
		}
		p, err := open(a.cfg.ActuatorLink())
		if err != nil {
			return fmt.Errorf("actuator: %w", err)
		}
		a.actuatorPort = p
		a.closers = append(a.closers, p)
	}
	return nil
}

func (a *App) initSpeech(ctx context.Context) error {
	if a.opts.Listener != nil {
		a.listener = a.opts.Listener
		return nil
	}

	switch a.cfg.Voice.Backend {
	case config.SpeechNone:
		a.logger.Info("voice commands disabled")
		return nil

	case config.SpeechConsole:
		a.listener = speech.NewConsoleListener(a.opts.Stdin)
		return nil

	case config.SpeechGoogle:
		transcriber, err := speech.NewGoogleTranscriber(ctx, speech.GoogleConfig{
			APIKey:          a.cfg.Voice.GoogleAPIKey,
			CredentialsFile: a.cfg.Voice.GoogleCredentialsFile,
			Language:        a.cfg.Voice.Language,
		})
		if err != nil {
			return err
		}
		src, err := audioio.NewSource(a.cfg.Audio, a.logger)
		if err != nil {
			return err
		}
		capOpts := speech.DefaultCaptureOptions()
		capOpts.AmbientDuration = a.cfg.Voice.AmbientDuration
		capOpts.PhraseLimit = a.cfg.Voice.PhraseLimit
		mic := speech.NewMicListener(speech.NewCapturer(src, capOpts, a.logger), transcriber, a.logger)
		a.listener = mic
		a.closers = append(a.closers, mic)
		return nil
	}
	return fmt.Errorf("unknown speech backend %q", a.cfg.Voice.Backend)
}

// Run executes the selected mode. In ModeRun it blocks until a stop command,
// a fatal fault or ctx cancellation, and returns the fatal fault if any.
func (a *App) Run(ctx context.Context) error {
	a.started = a.clock.Now()

	switch a.opts.Mode {
	case ModeClick:
		return a.channel.Click(ctx)
	case ModeMonitor:
		return a.runMonitor(ctx)
	case ModeCalibrate:
		return a.runCalibrate(ctx)
	}
	return a.runSystem(ctx)
}

func (a *App) runSystem(ctx context.Context) error {
	coord := shutdown.New(ctx, a.logger)
	a.coord.Store(coord)

	coord.Go("headset", a.reader.Run)
	if a.webServer != nil {
		coord.Go("web", func(ctx context.Context) error {
			if err := a.webServer.Run(ctx); err != nil {
				a.logger.Warn("status API stopped", log.Err(err))
			}
			return nil
		})
	}

	a.waitForSignal(coord.Context())
	if _, err := a.calibrator.Calibrate(coord.Context(), a.cfg.Calibration.Duration); err != nil && coord.Running() {
		a.logger.Warn("initial calibration failed, clicks stay disabled until the next calibration", log.Err(err))
	}

	coord.Go("trigger", a.engine.Run)

	if a.listener != nil {
		dispatcher := voice.NewDispatcher(a.listener, a.matcher, a.calibrator, coord, voice.Options{
			CalibrationDuration: a.cfg.Calibration.Duration,
			ListenTimeout:       a.cfg.Voice.ListenTimeout,
			Backoff:             a.cfg.Voice.Backoff.Policy(),
			Clock:               a.clock,
			Events:              a.bus,
			Metrics:             a.metrics,
			Logger:              a.logger,
		})
		a.printCommands()
		coord.Go("voice", func(ctx context.Context) error {
			err := dispatcher.Run(ctx)
			// Without the voice loop nothing can say "stop" any more.
			if coord.Stop("voice input closed") {
				a.logger.Warn("voice loop ended, shutting down")
			}
			return err
		})
	}

	err := coord.Wait()
	a.bus.Publish(events.Event{Type: events.Stopped, Component: "mindclick", Message: coord.Reason()})
	return err
}

func (a *App) runMonitor(ctx context.Context) error {
	coord := shutdown.New(ctx, a.logger)
	a.coord.Store(coord)
	coord.Go("headset", a.reader.Run)
	err := coord.Wait()
	a.bus.Publish(events.Event{Type: events.Stopped, Component: "mindclick", Message: coord.Reason()})
	return err
}

func (a *App) runCalibrate(ctx context.Context) error {
	coord := shutdown.New(ctx, a.logger)
	a.coord.Store(coord)
	coord.Go("headset", a.reader.Run)

	a.waitForSignal(coord.Context())
	_, calErr := a.calibrator.Calibrate(coord.Context(), a.cfg.Calibration.Duration)
	coord.Stop("calibration finished")
	if err := coord.Wait(); err != nil {
		return err
	}
	return calErr
}

// waitForSignal blocks until the first attention value arrives or
// StartupWait elapses, so the first calibration window is not empty.
func (a *App) waitForSignal(ctx context.Context) {
	wait := a.cfg.Calibration.StartupWait
	if wait <= 0 {
		return
	}
	deadline := a.clock.Now().Add(wait)
	for {
		if _, ok := a.live.Load(); ok {
			return
		}
		if !a.clock.Now().Before(deadline) {
			a.logger.Warn("no attention values yet, calibrating anyway", log.Duration(wait))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(a.cfg.Calibration.PollInterval):
		}
	}
}

func (a *App) printCommands() {
	help := map[string]string{}
	var order []string
	for _, r := range a.matcher.Rules() {
		desc := "quit program"
		if r.Command == voice.Calibrate {
			desc = "recalibrate EEG threshold"
		}
		for _, kw := range r.Keywords {
			help[kw] = desc
			order = append(order, kw)
		}
	}
	console.Commands(a.opts.Stdout, help, order)
}

// Stop ends the run. It reports whether this call stopped it.
func (a *App) Stop(reason string) bool {
	coord := a.coord.Load()
	if coord == nil {
		return false
	}
	return coord.Stop(reason)
}

// Shutdown releases ports, speech capture and event sinks. It is safe to
// call more than once.
func (a *App) Shutdown() error {
	var errs []error
	a.shutdown.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i].Close(); err != nil && !errors.Is(err, serialport.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if a.bus != nil {
			a.bus.Close()
		}
		if a.nats != nil {
			if err := a.nats.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.logger.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
