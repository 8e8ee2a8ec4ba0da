//go:build !linux

package audioio

import (
	"fmt"
	"log/slog"
)

func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("ALSA capture is only available on Linux")
}
