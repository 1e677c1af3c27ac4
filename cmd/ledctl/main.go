// Command ledctl controls Bluetooth LE RGB LED strip controllers.
//
// Usage:
//
//	ledctl [-config path] [-device id] <command> [args]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/ledctl/internal/api"
	"github.com/chaz8081/ledctl/internal/ble"
	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/config"
	"github.com/chaz8081/ledctl/internal/control"
	ledmcp "github.com/chaz8081/ledctl/internal/mcp"
	"github.com/chaz8081/ledctl/internal/store"
)

const version = "0.1.0"

const usage = `usage: ledctl [-config path] [-device id] <command> [args]

Device commands:
  scan                          list nearby LED controllers
  devices                       list previously connected devices
  forget <id>                   remove a device from the list
  status                        show the last sent state and live connections
  patterns                      list built-in patterns
  init-config                   write a default config file
  serve [addr]                  serve the HTTP API (default api.address)
  mcp                           serve MCP tools over stdio

Control commands (sent to -device, the configured device, or the last one used):
  power on|off
  color <#rrggbb|r,g,b>
  brightness <0-100>
  speed <0-100>
  pattern <name|index>
  mic on|off
  mic-eq <0-3>
  mic-sensitivity <0-100>
  sync-time
  timer set|clear <HH:MM[:SS]> <days> on|off
  wire-order <rgb permutation, e.g. grb>
`

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/ledctl/config.yaml)")
	device := flag.String("device", "", "device ID to control (MAC on Linux, UUID on macOS)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// init-config and patterns need neither config nor Bluetooth.
	switch args[0] {
	case "init-config":
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("init-config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	case "patterns":
		printPatterns()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	st, err := store.Load(cfg.StatePath)
	if err != nil {
		log.Fatalf("state: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, st, *device, args); err != nil {
		stop()
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, cfg *config.Config, st *store.Store, device string, args []string) error {
	switch args[0] {
	case "devices":
		printDevices(st)
		return nil
	case "forget":
		if err := needArgs("forget", args[1:], 1); err != nil {
			return err
		}
		ok, err := st.Forget(args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown device %q", args[1])
		}
		fmt.Printf("Forgot %s\n", args[1])
		return nil
	}

	// Validate control arguments before touching the radio.
	var cmd protocol.Command
	switch args[0] {
	case "scan", "status", "mcp":
	case "serve":
		if len(args) > 2 {
			return fmt.Errorf("serve: want at most 1 argument, got %d", len(args)-1)
		}
	default:
		var err error
		if cmd, err = parseCommand(args, time.Now()); err != nil {
			return err
		}
	}

	session, cleanup, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	switch args[0] {
	case "scan":
		return scan(ctx, cfg, session, st)
	case "status":
		return status(session, st)
	}

	ctl, err := newController(cfg, session, st, device)
	if err != nil {
		return err
	}
	defer ctl.Close()

	switch args[0] {
	case "serve":
		addr := cfg.API.Address
		if len(args) == 2 {
			addr = args[1]
		}
		return serve(ctx, ctl, addr)
	case "mcp":
		return serveMCP(ctx, ctl)
	}

	if err := ctl.Send(ctx, cmd); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

// openSession builds the Bluetooth stack: the tinygo central, optionally
// backed by BlueZ for the connected-device query, wrapped in a Session.
func openSession(cfg *config.Config) (*ble.Session, func(), error) {
	var querier ble.ConnectedQuerier
	cleanup := func() {}

	if cfg.BLE.BlueZ && runtime.GOOS == "linux" {
		bz, err := ble.NewBlueZ()
		if err != nil {
			slog.Warn("[BLE] BlueZ unavailable, connected query limited to this process", "error", err)
		} else {
			querier = bz
			cleanup = func() { bz.Close() }
		}
	}

	session := ble.NewSession(ble.NewTinyGoCentral(querier), ble.SessionOptions{
		OpTimeout:   cfg.Timeouts.Operation,
		ServiceUUID: cfg.BLE.ServiceUUID,
		ScanBuffer:  64,
	})
	if err := session.Enable(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("enabling Bluetooth: %w", err)
	}
	return session, cleanup, nil
}

func scan(ctx context.Context, cfg *config.Config, session *ble.Session, st *store.Store) error {
	fmt.Printf("Scanning for %s...\n", cfg.Timeouts.Scan)
	devices, err := ble.ScanForDevices(ctx, session, cfg.Timeouts.Scan, cfg.BLE.NamePrefix)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	for _, d := range devices {
		mark := " "
		if _, known := st.Lookup(d.ID); known {
			mark = "*"
		}
		fmt.Printf("%s %-36s  %-20s  %4d dBm\n", mark, d.ID, d.DisplayName(), d.RSSI)
	}
	return nil
}

func status(session *ble.Session, st *store.Store) error {
	if last, ok := st.Last(); ok {
		fmt.Printf("Last device: %s (%s)\n", last.ID, displayName(last.Name))
	} else {
		fmt.Println("Last device: none")
	}

	c := st.Control()
	power := "off"
	if c.On {
		power = "on"
	}
	mic := "off"
	if c.Mic {
		mic = "on"
	}
	fmt.Println("=== last sent state ===")
	fmt.Printf("  Power:       %s\n", power)
	fmt.Printf("  Brightness:  %d\n", c.Brightness)
	fmt.Printf("  Color:       %s\n", c.Color)
	fmt.Printf("  Pattern:     %s (speed %d)\n", c.Pattern, c.Speed)
	fmt.Printf("  Mic:         %s (eq %d, sensitivity %d)\n", mic, c.MicEQ, c.MicSensitivity)
	if len(c.RecentColors) > 0 {
		fmt.Printf("  Recent:      %s\n", strings.Join(c.RecentColors, " "))
	}

	if err := session.RefreshConnectionState(); err != nil {
		return err
	}
	connected := session.ConnectedPeripherals()
	fmt.Printf("Connected LED controllers: %d\n", len(connected))
	for _, p := range connected {
		fmt.Printf("  %s (%s)\n", p.ID, p.DisplayName())
	}
	return nil
}

// newController binds a client for the selected device to the store.
func newController(cfg *config.Config, session *ble.Session, st *store.Store, device string) (*control.Controller, error) {
	id, name, err := resolveDevice(device, cfg.Device, st)
	if err != nil {
		return nil, err
	}

	client := ble.NewClient(session, st, ble.ClientOptions{
		ServiceUUID:       cfg.BLE.ServiceUUID,
		ControlCharUUID:   cfg.BLE.ControlUUID,
		ReconnectAttempts: cfg.Reconnect.Attempts,
		ReconnectMax:      cfg.Reconnect.MaxBackoff,
	})
	slog.Info("[BLE] target device", "id", id, "name", name)
	return control.New(client, st, control.Device{ID: id, Name: name}), nil
}

// connectEarly connects a long-running server up front. Failure is not
// fatal: the controller reconnects on the first command.
func connectEarly(ctx context.Context, ctl *control.Controller) {
	if err := ctl.Connect(ctx); err != nil {
		slog.Warn("[BLE] initial connect failed, will retry on first command", "error", err)
	}
}

func serve(ctx context.Context, ctl *control.Controller, addr string) error {
	connectEarly(ctx, ctl)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(ctl).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("HTTP API listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveMCP(ctx context.Context, ctl *control.Controller) error {
	connectEarly(ctx, ctl)
	// stdout is the MCP transport; everything else goes to stderr.
	slog.Info("[MCP] serving on stdio")
	err := ledmcp.NewServer(ctl, version).ServeStdio(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("[MCP] shutting down")
		return nil
	}
	return err
}

func printDevices(st *store.Store) {
	devices := st.List()
	if len(devices) == 0 {
		fmt.Println("No known devices")
		return
	}
	last, _ := st.Last()
	for _, d := range devices {
		mark := " "
		if strings.EqualFold(d.ID, last.ID) {
			mark = "*"
		}
		fmt.Printf("%s %-36s  %-20s  %s\n", mark, d.ID, displayName(d.Name), d.LastConnected.Local().Format(time.DateTime))
	}
}

func printPatterns() {
	for _, p := range protocol.Patterns() {
		fmt.Printf("%2d  %-26s  %s\n", uint8(p), p.String(), p.DisplayName())
	}
}

func displayName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	return config.Default(), nil
}

// setupLogging installs a text slog handler on stderr at the given level.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
