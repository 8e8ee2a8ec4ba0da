package audioio

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-mindclick/internal/log"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	return cfg
}

func TestConfig_Frames(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.FrameSamples() != 320 {
		t.Errorf("FrameSamples = %d, want 320 (20ms at 16kHz)", cfg.FrameSamples())
	}
	if cfg.FrameBytes() != 640 {
		t.Errorf("FrameBytes = %d, want 640", cfg.FrameBytes())
	}

	bad := cfg
	bad.FrameDuration = time.Microsecond
	if err := bad.Validate(); err == nil {
		t.Error("frame shorter than one sample should be rejected")
	}
}

func TestMockSource_Pattern(t *testing.T) {
	src := NewMockSource(testConfig(), log.Discard(), WithPattern(
		Silence(40*time.Millisecond),
		Tone(60*time.Millisecond, 440, 0.5),
	))
	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var levels []float64
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if chunk.Duration() != 20*time.Millisecond {
			t.Errorf("chunk duration = %v", chunk.Duration())
		}
		levels = append(levels, chunk.Level())
	}

	if len(levels) != 5 {
		t.Fatalf("frames = %d, want 5", len(levels))
	}
	if levels[0] != 0 || levels[1] != 0 {
		t.Errorf("silence frames have level %v %v", levels[0], levels[1])
	}
	// RMS of a sine at amplitude a is a/sqrt(2).
	for _, l := range levels[2:] {
		if math.Abs(l-0.5/math.Sqrt2) > 0.02 {
			t.Errorf("tone level = %v, want ~%v", l, 0.5/math.Sqrt2)
		}
	}
}

func TestMockSource_StopAndClose(t *testing.T) {
	src := NewMockSource(testConfig(), log.Discard())
	ctx := context.Background()

	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Read before Start = %v, want EOF", err)
	}
	_ = src.Start(ctx)
	if _, err := src.Read(ctx); err != nil {
		t.Errorf("silence source should read forever: %v", err)
	}
	_ = src.Stop()
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Read after Stop = %v, want EOF", err)
	}
	_ = src.Close()
	if err := src.Start(ctx); err == nil {
		t.Error("Start after Close should fail")
	}
}

func TestNewSource_Mock(t *testing.T) {
	src, err := NewSource(testConfig(), log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "mock" {
		t.Errorf("Name = %q", src.Name())
	}

	cfg := testConfig()
	cfg.SampleRate = 0
	if _, err := NewSource(cfg, log.Discard()); err == nil {
		t.Error("invalid config should be rejected")
	}
}

func TestResample(t *testing.T) {
	in := make([]int16, 960) // 20ms at 48kHz
	for i := range in {
		in[i] = int16(i)
	}
	if got := len(Resample(in, 48000, 16000)); got != 320 {
		t.Errorf("48k->16k length = %d, want 320", got)
	}
	if got := Resample(in, 16000, 16000); len(got) != len(in) {
		t.Error("same rate should be a no-op")
	}
	if got := Resample(nil, 8000, 16000); len(got) != 0 {
		t.Error("empty input should stay empty")
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]int16{100, 300, -50, 50}, 2)
	if len(got) != 2 || got[0] != 200 || got[1] != 0 {
		t.Errorf("Downmix = %v", got)
	}
	stereo := Chunk{Samples: []int16{10, 20}, SampleRate: 16000, Channels: 2}
	if m := stereo.Mono(); m.Channels != 1 || m.Samples[0] != 15 {
		t.Errorf("Mono = %+v", m)
	}
}

func TestS16LERoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out := DecodeS16LE(EncodeS16LE(in))
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d: %d != %d", i, out[i], in[i])
		}
	}
	if got := DecodeS16LE([]byte{1, 0, 7}); len(got) != 1 {
		t.Errorf("odd trailing byte should be ignored, got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("empty RMS should be 0")
	}
	full := []int16{-32768, -32768}
	if math.Abs(RMS(full)-1) > 1e-9 {
		t.Errorf("full-scale RMS = %v", RMS(full))
	}
}
