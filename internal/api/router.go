// Package api serves LED control over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/control"
	"github.com/chaz8081/ledctl/internal/store"
)

// Controller is what the handlers need from *control.Controller.
type Controller interface {
	Send(ctx context.Context, cmd protocol.Command) error
	Connected() bool
	Device() control.Device
	State() store.Control
	Devices() []store.DeviceRecord
}

var _ Controller = (*control.Controller)(nil)

// Router holds the Gin engine and dependencies
type Router struct {
	engine     *gin.Engine
	controller Controller
}

// NewRouter creates a new API router
func NewRouter(controller Controller) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	r := &Router{
		engine:     engine,
		controller: controller,
	}
	r.setupRoutes()

	return r
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", r.health)
		v1.GET("/status", r.status)
		v1.GET("/devices", r.listDevices)
		v1.GET("/patterns", r.listPatterns)

		v1.POST("/power", r.setPower)
		v1.POST("/color", r.setColor)
		v1.POST("/brightness", r.setBrightness)
		v1.POST("/speed", r.setSpeed)
		v1.POST("/pattern", r.setPattern)
		v1.POST("/mic", r.setMic)
		v1.POST("/mic/eq", r.setMicEQ)
		v1.POST("/mic/sensitivity", r.setMicSensitivity)
		v1.POST("/sync-time", r.syncTime)
		v1.POST("/timer", r.setTimer)
		v1.POST("/wire-order", r.setWireOrder)
	}
}

// Handler returns the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}
