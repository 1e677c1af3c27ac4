package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaz8081/ledctl/internal/ble"
	"github.com/chaz8081/ledctl/internal/ble/protocol"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

func (r *Router) health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	device := "disconnected"
	if r.controller.Connected() {
		device = "connected"
	} else {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{Status: status, Device: device, Timestamp: nowFunc()})
}

func (r *Router) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Device:    r.controller.Device(),
		Connected: r.controller.Connected(),
		State:     r.controller.State(),
	})
}

func (r *Router) listDevices(c *gin.Context) {
	target := r.controller.Device()
	records := r.controller.Devices()

	out := DevicesResponse{Devices: make([]DeviceInfo, 0, len(records))}
	for _, rec := range records {
		out.Devices = append(out.Devices, DeviceInfo{
			ID:            rec.ID,
			Name:          rec.Name,
			LastConnected: rec.LastConnected,
			Target:        rec.ID == target.ID,
		})
	}
	out.Count = len(out.Devices)
	c.JSON(http.StatusOK, out)
}

func (r *Router) listPatterns(c *gin.Context) {
	patterns := protocol.Patterns()
	out := make([]PatternInfo, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, PatternInfo{Index: int(p), Name: p.String(), DisplayName: p.DisplayName()})
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) setPower(c *gin.Context) {
	var req SwitchRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.Power{On: *req.On})
}

func (r *Router) setColor(c *gin.Context) {
	var req ColorRequest
	if !bindJSON(c, &req) {
		return
	}
	color, err := protocol.ParseColor(req.Color)
	if err != nil {
		badRequest(c, err)
		return
	}
	r.send(c, color)
}

func (r *Router) setBrightness(c *gin.Context) {
	var req LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.Brightness{Level: uint8(*req.Level)})
}

func (r *Router) setSpeed(c *gin.Context) {
	var req LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.Speed{Level: uint8(*req.Level)})
}

func (r *Router) setPattern(c *gin.Context) {
	var req PatternRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := protocol.ParsePattern(req.Pattern)
	if err != nil {
		badRequest(c, err)
		return
	}
	r.send(c, protocol.Pattern{ID: id})
}

func (r *Router) setMic(c *gin.Context) {
	var req SwitchRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.Mic{On: *req.On})
}

func (r *Router) setMicEQ(c *gin.Context) {
	var req MicEQRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.MicEQ{Mode: *req.Mode})
}

func (r *Router) setMicSensitivity(c *gin.Context) {
	var req LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	r.send(c, protocol.MicSensitivity{Level: *req.Level})
}

func (r *Router) syncTime(c *gin.Context) {
	r.send(c, protocol.SyncTimeAt(nowFunc()))
}

func (r *Router) setTimer(c *gin.Context) {
	var req TimerRequest
	if !bindJSON(c, &req) {
		return
	}
	h, m, s, err := protocol.ParseClock(req.Time)
	if err != nil {
		badRequest(c, err)
		return
	}
	days, err := protocol.ParseWeekdays(req.Days)
	if err != nil {
		badRequest(c, err)
		return
	}
	enabled := req.Enabled == nil || *req.Enabled
	r.send(c, protocol.Timer{
		Hour: h, Minute: m, Second: s,
		Weekdays: days,
		TurnOn:   req.Action == "on",
		Set:      enabled,
	})
}

func (r *Router) setWireOrder(c *gin.Context) {
	var req WireOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	w, err := protocol.ParseWireOrder(req.Order)
	if err != nil {
		badRequest(c, err)
		return
	}
	r.send(c, w)
}

// send forwards cmd to the controller and writes the response.
func (r *Router) send(c *gin.Context, cmd protocol.Command) {
	if err := r.controller.Send(c.Request.Context(), cmd); err != nil {
		code, kind := classify(err)
		c.JSON(code, ErrorResponse{Error: kind, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SendResponse{
		Success: true,
		Frame:   protocol.Encode(cmd).String(),
		State:   r.controller.State(),
	})
}

// classify maps a send error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, ble.ErrConnectionFailed),
		errors.Is(err, ble.ErrNotConnected),
		errors.Is(err, ble.ErrNotPoweredOn),
		errors.Is(err, ble.ErrNoServicesFound),
		errors.Is(err, ble.ErrNoCharacteristicsFound):
		return http.StatusServiceUnavailable, "device_unavailable"
	}
	return http.StatusBadGateway, "device_error"
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
}
