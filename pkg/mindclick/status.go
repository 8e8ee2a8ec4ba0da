package mindclick

import (
	"context"
	"time"

	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/state"
	"github.com/teslashibe/go-mindclick/pkg/web"
)

// Status reports the live state for the status API.
func (a *App) Status() web.Status {
	st := web.Status{
		Session: a.session,
		Trigger: "stopped",
	}
	if a.headsetPort != nil {
		st.Device = a.headsetPort.Device()
	}
	if coord := a.coord.Load(); coord != nil {
		st.Running = coord.Running()
		st.StopReason = coord.Reason()
	}
	if s, ok := a.live.Load(); ok {
		st.Live = &web.LiveValue{Value: s.Value, Seq: s.Seq, At: s.At}
	}
	if cal, ok := a.threshold.Load(); ok {
		st.Calibration = &cal
	}
	if a.calibrator != nil {
		st.Calibrating = a.calibrator.Active()
	}
	if a.engine != nil {
		st.Trigger = a.engine.State().String()
		st.Clicks = a.engine.Clicks()
		if last := a.engine.LastClick(); !last.IsZero() {
			st.LastClick = &last
		}
	}
	if !a.started.IsZero() {
		st.Uptime = a.clock.Since(a.started).Truncate(time.Second).String()
	}
	return st
}

// Calibration returns the current calibration.
func (a *App) Calibration() (state.Calibration, bool) {
	return a.threshold.Load()
}

// StartCalibration starts a calibration with the configured duration and
// returns without waiting for it. It fails with calibration.ErrBusy while
// another calibration, including a voice-initiated one, is running.
func (a *App) StartCalibration() error {
	ctx := context.Background()
	if coord := a.coord.Load(); coord != nil {
		ctx = coord.Context()
	}
	results, err := a.calibrator.Start(ctx, a.cfg.Calibration.Duration)
	if err != nil {
		return err
	}
	go func() {
		if r := <-results; r.Err != nil {
			a.logger.Warn("requested calibration did not complete", log.Err(r.Err))
		}
	}()
	return nil
}
