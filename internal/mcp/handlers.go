package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/control"
	"github.com/chaz8081/ledctl/internal/store"
)

// StatusOutput is the output for the get_status tool
type StatusOutput struct {
	Device    control.Device `json:"device"`
	Connected bool           `json:"connected"`
	State     store.Control  `json:"state"`
}

// DeviceInfo is one entry of the list_devices output
type DeviceInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	LastConnected time.Time `json:"last_connected"`
	Target        bool      `json:"target"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count"`
}

// PatternInfo is one entry of the list_patterns output
type PatternInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// SendOutput is returned by every tool that sends a command
type SendOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Frame   string `json:"frame"`
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := StatusOutput{
		Device:    s.controller.Device(),
		Connected: s.controller.Connected(),
		State:     s.controller.State(),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := s.controller.Device()
	records := s.controller.Devices()

	infos := make([]DeviceInfo, 0, len(records))
	for _, r := range records {
		infos = append(infos, DeviceInfo{
			ID:            r.ID,
			Name:          r.Name,
			LastConnected: r.LastConnected,
			Target:        r.ID == target.ID,
		})
	}
	return mcp.NewToolResultText(formatJSON(ListDevicesOutput{Devices: infos, Count: len(infos)})), nil
}

func (s *Server) handleListPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patterns := protocol.Patterns()
	out := make([]PatternInfo, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, PatternInfo{Index: int(p), Name: p.String(), DisplayName: p.DisplayName()})
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetPower(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := requiredBool(request, "on")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.Power{On: on}, "power %s", onOff(on)), nil
}

func (s *Server) handleSetColor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requiredString(request, "color")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := protocol.ParseColor(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, c, "color #%02x%02x%02x", c.R, c.G, c.B), nil
}

func (s *Server) handleSetBrightness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := requiredInt(request, "level", protocol.MaxBrightness)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.Brightness{Level: uint8(n)}, "brightness %d", n), nil
}

func (s *Server) handleSetSpeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := requiredInt(request, "level", protocol.MaxSpeed)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.Speed{Level: uint8(n)}, "speed %d", n), nil
}

func (s *Server) handleSetPattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requiredPatternArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := protocol.ParsePattern(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.Pattern{ID: id}, "pattern %s", id.DisplayName()), nil
}

func (s *Server) handleSetMic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := requiredBool(request, "on")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.Mic{On: on}, "mic %s", onOff(on)), nil
}

func (s *Server) handleSetMicEQ(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := requiredInt(request, "mode", protocol.MaxMicEQMode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.MicEQ{Mode: n}, "mic eq mode %d", n), nil
}

func (s *Server) handleSetMicSensitivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := requiredInt(request, "level", protocol.MaxSensitivity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, protocol.MicSensitivity{Level: n}, "mic sensitivity %d", n), nil
}

func (s *Server) handleSyncTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := nowFunc()
	return s.send(ctx, protocol.SyncTimeAt(now), "clock set to %s", now.Format("Mon 15:04:05")), nil
}

func (s *Server) handleSetTimer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clock, err := requiredString(request, "time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawDays, err := requiredString(request, "days")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := requiredString(request, "action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if action != "on" && action != "off" {
		return mcp.NewToolResultError(fmt.Sprintf("parameter \"action\" must be on or off, got %q", action)), nil
	}

	h, m, sec, err := protocol.ParseClock(clock)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	days, err := protocol.ParseWeekdays(rawDays)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	enabled := true
	if v, ok := request.GetArguments()["enabled"].(bool); ok {
		enabled = v
	}

	cmd := protocol.Timer{
		Hour: h, Minute: m, Second: sec,
		Weekdays: days,
		TurnOn:   action == "on",
		Set:      enabled,
	}
	verb := "set"
	if !enabled {
		verb = "cleared"
	}
	return s.send(ctx, cmd, "timer %s: turn %s at %02d:%02d:%02d (%s)", verb, action, h, m, sec, days), nil
}

func (s *Server) handleSetWireOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requiredString(request, "order")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := protocol.ParseWireOrder(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.send(ctx, w, "wire order %s", raw), nil
}

// send forwards cmd to the controller and renders the tool result.
func (s *Server) send(ctx context.Context, cmd protocol.Command, format string, args ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, args...)
	if err := s.controller.Send(ctx, cmd); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send %s: %s", msg, err))
	}
	out := SendOutput{
		Success: true,
		Message: msg,
		Frame:   protocol.Encode(cmd).String(),
	}
	return mcp.NewToolResultText(formatJSON(out))
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

// requiredPatternArg accepts the pattern as a name or as a bare index.
func requiredPatternArg(request mcp.CallToolRequest) (string, error) {
	if f, ok := request.GetArguments()["pattern"].(float64); ok {
		return fmt.Sprintf("%d", int(f)), nil
	}
	return requiredString(request, "pattern")
}

func requiredBool(request mcp.CallToolRequest, key string) (bool, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return false, fmt.Errorf("required parameter %q is missing", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q must be a boolean", key)
	}
	return b, nil
}

// requiredInt reads a whole number in 0..max. JSON numbers arrive as float64.
func requiredInt(request mcp.CallToolRequest, key string, max int) (int, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %q must be a whole number", key)
	}
	if f < 0 || f > float64(max) {
		return 0, fmt.Errorf("parameter %q must be between 0 and %d", key, max)
	}
	return int(f), nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
