package audioio

import (
	"fmt"
	"log/slog"
	"runtime"
)

// NewSource creates a capture source. BackendAuto selects ALSA on Linux.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = detectBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frame_ms", cfg.FrameDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendALSA:
		return newALSASource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported audio backend %q on %s", backend, runtime.GOOS)
	}
}

func detectBackend() Backend {
	if runtime.GOOS == "linux" {
		return BackendALSA
	}
	return Backend(runtime.GOOS)
}

// AvailableBackends lists the backends usable on this platform.
func AvailableBackends() []Backend {
	if runtime.GOOS == "linux" {
		return []Backend{BackendMock, BackendALSA}
	}
	return []Backend{BackendMock}
}
