package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
)

// ClientOptions configures the command client.
type ClientOptions struct {
	ServiceUUID       string
	ControlCharUUID   string
	ReconnectAttempts int // attempts made by Reconnect
	ReconnectMax      int // max reconnect backoff in seconds
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ServiceUUID:       ServiceUUID,
		ControlCharUUID:   ControlCharUUID,
		ReconnectAttempts: 3,
		ReconnectMax:      30,
	}
}

// DeviceRecorder persists the identity of a successfully connected device.
type DeviceRecorder interface {
	RecordConnection(id, name string) error
}

// Client runs the connect, discover service, discover characteristic chain
// against a Session and sends encoded commands to the control characteristic.
type Client struct {
	session  *Session
	recorder DeviceRecorder
	opts     ClientOptions
	backoff  func(attempt int) time.Duration

	mu         sync.Mutex
	peripheral *Peripheral
	control    *Characteristic
}

// NewClient creates a Client. recorder may be nil.
func NewClient(session *Session, recorder DeviceRecorder, opts ClientOptions) *Client {
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = ServiceUUID
	}
	if opts.ControlCharUUID == "" {
		opts.ControlCharUUID = ControlCharUUID
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 3
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30
	}
	c := &Client{
		session:  session,
		recorder: recorder,
		opts:     opts,
	}
	c.backoff = func(attempt int) time.Duration { return backoffDelay(attempt, c.opts.ReconnectMax) }
	session.OnDisconnect(c.handleDisconnect)
	return c
}

// handleDisconnect drops the control characteristic when its peripheral
// goes away, so the next Send reports ErrNotConnected.
func (c *Client) handleDisconnect(p Peripheral, err error) {
	c.mu.Lock()
	bound := c.peripheral != nil && strings.EqualFold(c.peripheral.ID, p.ID)
	if bound {
		c.peripheral = nil
		c.control = nil
	}
	c.mu.Unlock()
	if bound {
		slog.Warn("[BLE] link lost", "id", p.ID, "error", err)
	}
}

// Connect connects to p and locates its control characteristic. On any
// failure the client is left without a control characteristic.
func (c *Client) Connect(ctx context.Context, p Peripheral) error {
	control, err := c.connectChain(ctx, p)
	if err != nil {
		slog.Error("[BLE] connect sequence failed", "id", p.ID, "error", err)
		c.clear()
		return err
	}

	owner := *control.Service.Peripheral
	c.mu.Lock()
	c.peripheral = &owner
	c.control = control
	c.mu.Unlock()
	slog.Info("[BLE] control characteristic ready", "id", owner.ID, "name", owner.DisplayName())

	if c.recorder != nil {
		if err := c.recorder.RecordConnection(owner.ID, owner.Name); err != nil {
			slog.Warn("[BLE] failed to record device", "id", owner.ID, "error", err)
		}
	}
	return nil
}

func (c *Client) connectChain(ctx context.Context, p Peripheral) (*Characteristic, error) {
	connected, err := c.session.Connect(ctx, p)
	if err != nil {
		return nil, err
	}
	if connected.Name == "" {
		connected.Name = p.Name
	}

	control, err := c.discoverControl(ctx, connected)
	if err != nil {
		if derr := c.session.Disconnect(connected); derr != nil {
			slog.Warn("[BLE] disconnect after failed discovery", "id", p.ID, "error", derr)
		}
		return nil, err
	}
	return control, nil
}

func (c *Client) discoverControl(ctx context.Context, p Peripheral) (*Characteristic, error) {
	svcs, err := c.session.DiscoverServices(ctx, p, []string{c.opts.ServiceUUID})
	if err != nil {
		return nil, err
	}
	svc := pickService(svcs, c.opts.ServiceUUID)
	if svc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoServicesFound, c.opts.ServiceUUID)
	}
	if svc.Peripheral == nil {
		svc.Peripheral = &p
	}

	chars, err := c.session.DiscoverCharacteristics(ctx, svc, []string{c.opts.ControlCharUUID})
	if err != nil {
		return nil, err
	}
	for _, ch := range chars {
		if strings.EqualFold(ch.UUID, c.opts.ControlCharUUID) {
			if ch.Service == nil {
				ch.Service = svc
			}
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCharacteristicsFound, c.opts.ControlCharUUID)
}

func pickService(svcs []*Service, uuid string) *Service {
	for _, s := range svcs {
		if strings.EqualFold(s.UUID, uuid) {
			return s
		}
	}
	return nil
}

// Reconnect connects to a previously seen device by identifier, retrying
// with exponential backoff up to ReconnectAttempts times.
func (c *Client) Reconnect(ctx context.Context, id, name string) error {
	var err error
	for attempt := 0; attempt < c.opts.ReconnectAttempts; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			slog.Info("[BLE] reconnect backoff", "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("ble: reconnect to %s: %w", id, ctx.Err())
			}
		}

		err = c.Connect(ctx, Peripheral{ID: id, Name: name})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		slog.Warn("[BLE] reconnect failed", "error", err, "attempt", attempt+1)
	}
	return fmt.Errorf("ble: reconnect to %s after %d attempts: %w", id, c.opts.ReconnectAttempts, err)
}

// Send encodes cmd and writes it to the control characteristic without response.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) error {
	c.mu.Lock()
	control := c.control
	c.mu.Unlock()
	if control == nil {
		return ErrNotConnected
	}

	frame := protocol.Encode(cmd)
	slog.Debug("[BLE] sending", "command", fmt.Sprintf("%T", cmd), "frame", frame.String())
	err := c.session.Write(ctx, frame, control, WriteWithoutResponse)
	if errors.Is(err, ErrMissingContext) || errors.Is(err, ErrWriteFailed) {
		c.clearIf(control)
	}
	return err
}

// Connected reports whether a control characteristic is available.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control != nil
}

// Peripheral returns the device the client is bound to.
func (c *Client) Peripheral() (Peripheral, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peripheral == nil {
		return Peripheral{}, false
	}
	return *c.peripheral, true
}

// clearIf clears the client only if control is still the current
// characteristic, so a concurrent reconnect is not undone.
func (c *Client) clearIf(control *Characteristic) {
	c.mu.Lock()
	if c.control == control {
		c.peripheral = nil
		c.control = nil
	}
	c.mu.Unlock()
}

func (c *Client) clear() {
	c.mu.Lock()
	c.peripheral = nil
	c.control = nil
	c.mu.Unlock()
}

// Close disconnects from the bound device, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	p := c.peripheral
	c.peripheral = nil
	c.control = nil
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	return c.session.Disconnect(*p)
}

// backoffDelay returns the reconnection delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	max := time.Duration(maxSeconds) * time.Second
	if attempt >= 30 {
		return max
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > max {
		return max
	}
	return delay
}
