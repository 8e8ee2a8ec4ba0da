// Package state holds the cells shared between the control loops: the live
// attention value and the current calibration. Each cell is a single atomic
// pointer, so a reader always sees one whole value that some writer stored.
package state

import (
	"sync/atomic"
	"time"
)

// Sample is one attention value observed on the headset link.
type Sample struct {
	Value int
	Seq   uint64
	At    time.Time
}

// Live holds the most recent attention sample.
// There is one writer (the headset reader) and any number of readers.
type Live struct {
	cur atomic.Pointer[Sample]
	seq atomic.Uint64
	now func() time.Time
}

// NewLive returns an empty cell. now may be nil.
func NewLive(now func() time.Time) *Live {
	if now == nil {
		now = time.Now
	}
	return &Live{now: now}
}

// Store publishes v as the latest sample.
func (l *Live) Store(v int) Sample {
	s := &Sample{Value: v, Seq: l.seq.Add(1), At: l.now()}
	l.cur.Store(s)
	return *s
}

// Load returns the latest sample. ok is false before the first sample
// arrives and after Invalidate.
func (l *Live) Load() (Sample, bool) {
	s := l.cur.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}

// Value returns the latest value, or the sentinel 0 when there is none.
func (l *Live) Value() int {
	s, _ := l.Load()
	return s.Value
}

// Invalidate marks the cell as having no current data, e.g. after the
// headset link is lost. Readers see ok=false until the next Store.
func (l *Live) Invalidate() {
	l.cur.Store(nil)
}

// Calibration is the outcome of one completed calibration window.
type Calibration struct {
	ID          string        `json:"id"`
	Baseline    float64       `json:"baseline"`
	Margin      float64       `json:"margin"`
	Threshold   float64       `json:"threshold"`
	Samples     int           `json:"samples"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Threshold holds the current calibration. It is replaced whole, so readers
// never see a threshold mixed from two calibrations.
type Threshold struct {
	cur atomic.Pointer[Calibration]
}

// Set replaces the current calibration.
func (t *Threshold) Set(c Calibration) {
	t.cur.Store(&c)
}

// Load returns the current calibration; ok is false until the first one completes.
func (t *Threshold) Load() (Calibration, bool) {
	c := t.cur.Load()
	if c == nil {
		return Calibration{}, false
	}
	return *c, true
}

// Value returns the current threshold, 0 when uncalibrated.
func (t *Threshold) Value() float64 {
	c, _ := t.Load()
	return c.Threshold
}
