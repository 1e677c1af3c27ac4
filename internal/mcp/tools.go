package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
)

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_status",
			mcp.WithDescription("Show the target LED controller, whether it is connected, and the last values sent to it"),
		),
		s.handleGetStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List LED controllers that have been connected before, most recent first"),
		),
		s.handleListDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_patterns",
			mcp.WithDescription("List the built-in animation patterns with their index and name"),
		),
		s.handleListPatterns,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_power",
			mcp.WithDescription("Turn the LED strip on or off"),
			mcp.WithBoolean("on",
				mcp.Required(),
				mcp.Description("true to switch on, false to switch off"),
			),
		),
		s.handleSetPower,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_color",
			mcp.WithDescription("Show a static color"),
			mcp.WithString("color",
				mcp.Required(),
				mcp.Description("Color as #rrggbb or r,g,b (e.g. \"#ff8000\" or \"255,128,0\")"),
			),
		),
		s.handleSetColor,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_brightness",
			mcp.WithDescription("Set the brightness level"),
			mcp.WithNumber("level",
				mcp.Required(),
				mcp.Description(fmt.Sprintf("Brightness 0-%d", protocol.MaxBrightness)),
				mcp.Min(0),
				mcp.Max(protocol.MaxBrightness),
			),
		),
		s.handleSetBrightness,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_speed",
			mcp.WithDescription("Set the animation speed of the current pattern"),
			mcp.WithNumber("level",
				mcp.Required(),
				mcp.Description(fmt.Sprintf("Speed 0-%d", protocol.MaxSpeed)),
				mcp.Min(0),
				mcp.Max(protocol.MaxSpeed),
			),
		),
		s.handleSetSpeed,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_pattern",
			mcp.WithDescription("Start a built-in animation pattern"),
			mcp.WithString("pattern",
				mcp.Required(),
				mcp.Description("Pattern name (e.g. \"RED_STROBE_FLASH\") or index 0-28; see list_patterns"),
			),
		),
		s.handleSetPattern,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_mic",
			mcp.WithDescription("Turn microphone (music reactive) mode on or off"),
			mcp.WithBoolean("on",
				mcp.Required(),
				mcp.Description("true to enable, false to disable"),
			),
		),
		s.handleSetMic,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_mic_eq",
			mcp.WithDescription("Select the microphone equalizer mode"),
			mcp.WithNumber("mode",
				mcp.Required(),
				mcp.Description(fmt.Sprintf("Mode 0-%d", protocol.MaxMicEQMode)),
				mcp.Min(0),
				mcp.Max(protocol.MaxMicEQMode),
			),
		),
		s.handleSetMicEQ,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_mic_sensitivity",
			mcp.WithDescription("Set the microphone sensitivity"),
			mcp.WithNumber("level",
				mcp.Required(),
				mcp.Description(fmt.Sprintf("Sensitivity 0-%d", protocol.MaxSensitivity)),
				mcp.Min(0),
				mcp.Max(protocol.MaxSensitivity),
			),
		),
		s.handleSetMicSensitivity,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("sync_time",
			mcp.WithDescription("Set the controller's clock to the current local time"),
		),
		s.handleSyncTime,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_timer",
			mcp.WithDescription("Program or clear the controller's on/off schedule"),
			mcp.WithString("time",
				mcp.Required(),
				mcp.Description("Time of day as HH:MM or HH:MM:SS"),
			),
			mcp.WithString("days",
				mcp.Required(),
				mcp.Description("Days such as \"daily\", \"weekdays\", \"weekend\" or \"mon,wed,fri\""),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description("What the timer does when it fires"),
				mcp.Enum("on", "off"),
			),
			mcp.WithBoolean("enabled",
				mcp.Description("false clears the timer (default true)"),
			),
		),
		s.handleSetTimer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_wire_order",
			mcp.WithDescription("Tell the controller how the strip's color channels are wired"),
			mcp.WithString("order",
				mcp.Required(),
				mcp.Description("Permutation of rgb, e.g. \"grb\""),
			),
		),
		s.handleSetWireOrder,
	)
}
