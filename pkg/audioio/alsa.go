//go:build linux

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// arecordBinary is the ALSA capture tool from alsa-utils.
const arecordBinary = "arecord"

// ALSASource records from an ALSA device through an arecord child process
// writing raw S16_LE PCM to its stdout.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu      sync.Mutex
	cmd     *exec.Cmd
	frames  chan Chunk
	running bool
	closed  bool

	overruns atomic.Int64
}

func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	if _, err := exec.LookPath(arecordBinary); err != nil {
		return nil, fmt.Errorf("ALSA capture needs %s (alsa-utils): %w", arecordBinary, err)
	}
	device := cfg.Device
	if device == "" {
		device = "default"
	}
	return &ALSASource{cfg: cfg, logger: logger, device: device}, nil
}

// Start launches arecord. The process outlives ctx and runs until Stop.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(arecordBinary,
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-D", s.device,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("arecord stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.frames = make(chan Chunk, 50)
	s.running = true
	go s.capture(stdout, s.frames)

	s.logger.Info("ALSA capture started", "device", s.device, "sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels)
	return nil
}

func (s *ALSASource) capture(stdout io.Reader, frames chan<- Chunk) {
	defer close(frames)
	buf := make([]byte, s.cfg.FrameBytes())
	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Debug("ALSA capture ended", "error", err)
			}
			return
		}
		chunk := Chunk{Samples: DecodeS16LE(buf), SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
		select {
		case frames <- chunk:
		default:
			if s.overruns.Add(1)%50 == 1 {
				s.logger.Debug("ALSA capture: reader too slow, dropping frames")
			}
		}
	}
}

// Read returns the next captured frame.
func (s *ALSASource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()
	if frames == nil {
		return Chunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-frames:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stop terminates arecord.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.logger.Info("ALSA capture stopped", "overruns", s.overruns.Load())
	return nil
}

func (s *ALSASource) Config() Config { return s.cfg }

func (s *ALSASource) Name() string { return string(BackendALSA) }

// Close stops capture; the source cannot be restarted.
func (s *ALSASource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
