// Package web serves the mindclick status API: JSON status and calibration
// endpoints, control endpoints, Prometheus metrics and a websocket event
// stream. It has no user interface of its own.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/hub"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

// Status is the body of GET /api/status.
type Status struct {
	Session     string             `json:"session"`
	Running     bool               `json:"running"`
	StopReason  string             `json:"stop_reason,omitempty"`
	Device      string             `json:"device"`
	Live        *LiveValue         `json:"live"`
	Calibration *state.Calibration `json:"calibration"`
	Calibrating bool               `json:"calibrating"`
	Trigger     string             `json:"trigger"`
	Clicks      uint64             `json:"clicks"`
	LastClick   *time.Time         `json:"last_click,omitempty"`
	Uptime      string             `json:"uptime"`
}

// LiveValue is the latest headset sample as reported by the API.
type LiveValue struct {
	Value int       `json:"value"`
	Seq   uint64    `json:"seq"`
	At    time.Time `json:"at"`
}

// Controller is the running system as seen by the API.
type Controller interface {
	Status() Status
	Calibration() (state.Calibration, bool)
	// StartCalibration starts a calibration in the background. It returns
	// calibration.ErrBusy when one is already running.
	StartCalibration() error
	Stop(reason string) bool
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Events backs GET /api/events. Optional.
	Events *events.Ring
	// Metrics is served at GET /metrics. Optional.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the status API server
type Server struct {
	app    *fiber.App
	addr   string
	ctrl   Controller
	ring   *events.Ring
	hub    *hub.Hub
	logger *slog.Logger
}

// NewServer creates a server for ctrl. Call Sink to feed its event stream.
func NewServer(ctrl Controller, opts Options) *Server {
	logger := log.OrDefault(opts.Logger).With(log.Component("web"))
	s := &Server{
		addr:   opts.Addr,
		ctrl:   ctrl,
		ring:   opts.Events,
		hub:    hub.New("events", logger),
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "mindclick",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/calibration", s.handleCalibration)
	api.Post("/calibrate", s.handleCalibrate)
	api.Post("/stop", s.handleStop)
	api.Get("/events", s.handleEvents)

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Sink returns an event sink that streams events to websocket clients.
func (s *Server) Sink() events.Sink {
	return events.NewBroadcastSink(s.hub)
}

// Hub returns the websocket hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	s.logger.Info("status API listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		s.logger.Warn("status API shutdown", log.Err(err))
	}
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), log.Err(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
