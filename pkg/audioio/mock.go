package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Segment is one stretch of synthetic audio. Frequency 0 is silence.
type Segment struct {
	Duration  time.Duration
	Frequency float64
	Amplitude float64 // 0..1 of full scale
}

// Silence returns a silent segment.
func Silence(d time.Duration) Segment {
	return Segment{Duration: d}
}

// Tone returns a sine segment.
func Tone(d time.Duration, frequency, amplitude float64) Segment {
	return Segment{Duration: d, Frequency: frequency, Amplitude: amplitude}
}

// MockSource generates frames from a pattern of segments. Without a pattern
// it produces silence forever. With a pattern it returns io.EOF after the
// last segment unless looping.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	pattern  []Segment
	loop     bool
	realtime bool

	mu      sync.Mutex
	running bool
	closed  bool
	seg     int // current segment
	left    int // samples left in the current segment
	phase   float64
	frames  int64
}

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithPattern plays segs in order.
func WithPattern(segs ...Segment) MockOption {
	return func(m *MockSource) { m.pattern = segs }
}

// WithLoop repeats the pattern.
func WithLoop() MockOption {
	return func(m *MockSource) { m.loop = true }
}

// WithRealtime paces Read at one frame per FrameDuration.
func WithRealtime() MockOption {
	return func(m *MockSource) { m.realtime = true }
}

// NewMockSource creates a mock source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	m.rewind()
	return m
}

func (m *MockSource) rewind() {
	m.seg = 0
	m.phase = 0
	if len(m.pattern) > 0 {
		m.left = m.samplesIn(m.pattern[0])
	}
}

func (m *MockSource) samplesIn(s Segment) int {
	return int(s.Duration.Seconds() * float64(m.cfg.SampleRate))
}

// Start begins generation.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Read returns the next generated frame.
func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if m.realtime {
		timer := time.NewTimer(m.cfg.FrameDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Chunk{}, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return Chunk{}, io.EOF
	}

	n := m.cfg.FrameSamples()
	samples := make([]int16, 0, n*m.cfg.Channels)
	for i := 0; i < n; i++ {
		v, ok := m.next()
		if !ok {
			if i == 0 {
				return Chunk{}, io.EOF
			}
			break
		}
		for ch := 0; ch < m.cfg.Channels; ch++ {
			samples = append(samples, v)
		}
	}
	m.frames++
	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}, nil
}

// next returns the next mono sample; ok is false at the end of the pattern.
func (m *MockSource) next() (int16, bool) {
	if len(m.pattern) == 0 {
		return 0, true
	}
	for m.left <= 0 {
		m.seg++
		if m.seg >= len(m.pattern) {
			if !m.loop {
				return 0, false
			}
			m.seg = 0
		}
		m.left = m.samplesIn(m.pattern[m.seg])
		m.phase = 0
	}
	m.left--

	s := m.pattern[m.seg]
	if s.Frequency == 0 {
		return 0, true
	}
	v := s.Amplitude * math.Sin(2*math.Pi*s.Frequency*m.phase/float64(m.cfg.SampleRate))
	m.phase++
	return int16(v * 32767), true
}

// Frames returns the number of frames produced.
func (m *MockSource) Frames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Stop halts generation; Read returns io.EOF until Start.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSource) Config() Config { return m.cfg }

func (m *MockSource) Name() string { return string(BackendMock) }

// Close stops the source for good.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.closed = true
	return nil
}
