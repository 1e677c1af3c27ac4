// Package mcp exposes LED control as Model Context Protocol tools so an
// assistant can drive the strip.
package mcp

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/control"
	"github.com/chaz8081/ledctl/internal/store"
)

// Controller is what the tools need from *control.Controller.
type Controller interface {
	Send(ctx context.Context, cmd protocol.Command) error
	Connected() bool
	Device() control.Device
	State() store.Control
	Devices() []store.DeviceRecord
}

var _ Controller = (*control.Controller)(nil)

// Server wraps the MCP server with ledctl's tools.
type Server struct {
	mcpServer  *server.MCPServer
	controller Controller
}

// NewServer creates an MCP server whose tools act on controller.
func NewServer(controller Controller, version string) *Server {
	s := &Server{controller: controller}

	s.mcpServer = server.NewMCPServer(
		"ledctl",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// ServeStdio serves MCP over stdin/stdout until stdin closes or ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads JSON-RPC requests from in and writes responses to out until
// in reaches EOF or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[MCP] ", log.LstdFlags))
	return stdio.Listen(ctx, in, out)
}
