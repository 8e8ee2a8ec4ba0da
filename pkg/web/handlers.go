package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-mindclick/pkg/calibration"
	"github.com/teslashibe/go-mindclick/pkg/hub"
)

// handleStatus returns the current system state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleCalibration returns the current calibration, 404 before the first one
func (s *Server) handleCalibration(c *fiber.Ctx) error {
	cal, ok := s.ctrl.Calibration()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "not calibrated")
	}
	return c.JSON(cal)
}

// handleCalibrate starts a calibration in the background
func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	if err := s.ctrl.StartCalibration(); err != nil {
		if errors.Is(err, calibration.ErrBusy) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "calibrating"})
}

// handleStop ends the run
func (s *Server) handleStop(c *fiber.Ctx) error {
	stopped := s.ctrl.Stop("api request")
	return c.JSON(fiber.Map{"stopped": stopped})
}

// handleEvents returns recent events
func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.ring == nil {
		return c.JSON([]any{})
	}
	return c.JSON(s.ring.Snapshot())
}

// handleEventsWS streams events; recent history is sent first.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	var initial []hub.Message
	if s.ring != nil {
		for _, e := range s.ring.Snapshot() {
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			initial = append(initial, hub.NewJSONMessage(data))
		}
	}
	s.hub.Serve(conn, initial...)
}
