package api

import (
	"time"

	"github.com/chaz8081/ledctl/internal/control"
	"github.com/chaz8081/ledctl/internal/store"
)

// --- Request DTOs ---

// SwitchRequest is the body for POST /power and POST /mic
type SwitchRequest struct {
	On *bool `json:"on" binding:"required"`
}

// ColorRequest is the body for POST /color
type ColorRequest struct {
	Color string `json:"color" binding:"required"`
}

// LevelRequest is the body for POST /brightness, /speed and /mic/sensitivity
type LevelRequest struct {
	Level *int `json:"level" binding:"required,min=0,max=100"`
}

// MicEQRequest is the body for POST /mic/eq
type MicEQRequest struct {
	Mode *int `json:"mode" binding:"required,min=0,max=3"`
}

// PatternRequest is the body for POST /pattern
type PatternRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// TimerRequest is the body for POST /timer
type TimerRequest struct {
	Time    string `json:"time" binding:"required"`
	Days    string `json:"days" binding:"required"`
	Action  string `json:"action" binding:"required,oneof=on off"`
	Enabled *bool  `json:"enabled"`
}

// WireOrderRequest is the body for POST /wire-order
type WireOrderRequest struct {
	Order string `json:"order" binding:"required"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is returned from GET /status
type StatusResponse struct {
	Device    control.Device `json:"device"`
	Connected bool           `json:"connected"`
	State     store.Control  `json:"state"`
}

// DeviceInfo is one entry of GET /devices
type DeviceInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	LastConnected time.Time `json:"last_connected"`
	Target        bool      `json:"target"`
}

// DevicesResponse is returned from GET /devices
type DevicesResponse struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count"`
}

// PatternInfo is one entry of GET /patterns
type PatternInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// SendResponse is returned by every command endpoint
type SendResponse struct {
	Success bool          `json:"success"`
	Frame   string        `json:"frame"`
	State   store.Control `json:"state"`
}
