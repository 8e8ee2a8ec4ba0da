// Package headset reads attention telemetry from the EEG headset link.
package headset

import (
	"errors"
	"strconv"
	"strings"
)

// Prefix marks an attention record on the telemetry link.
const Prefix = "ATT:"

// ErrSkip is returned for lines that are not attention records.
var ErrSkip = errors.New("headset: not an attention record")

// ParseLine extracts the attention value from one telemetry line.
//
// Surrounding whitespace is ignored. The line must start with "ATT:"
// (case-sensitive); the field between the first and an optional second
// colon must be a signed decimal integer. Values outside 0..100 are
// passed through unchanged.
func ParseLine(line string) (int, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, Prefix)
	if !ok {
		return 0, ErrSkip
	}
	field, _, _ := strings.Cut(rest, ":")
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, ErrSkip
	}
	return v, nil
}
