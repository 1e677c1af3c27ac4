// Package control binds a BLE client to one LED controller and records
// every command it sends. The CLI, the MCP server and the HTTP API all
// drive the strip through a Controller.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/ledctl/internal/ble"
	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/store"
)

// Client is the subset of *ble.Client a Controller needs.
type Client interface {
	Reconnect(ctx context.Context, id, name string) error
	Send(ctx context.Context, cmd protocol.Command) error
	Connected() bool
	Close() error
}

var _ Client = (*ble.Client)(nil)

// Device identifies the controller a Controller talks to.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Controller sends commands to a single device, connecting on demand, and
// mirrors the sent values into the store. Commands are serialized.
type Controller struct {
	client Client
	store  *store.Store
	device Device

	mu sync.Mutex
}

// New creates a Controller for device. Nothing is connected until Connect
// or the first Send.
func New(client Client, st *store.Store, device Device) *Controller {
	return &Controller{client: client, store: st, device: device}
}

// Device returns the target device.
func (c *Controller) Device() Device {
	return c.device
}

// Connected reports whether the control characteristic is ready.
func (c *Controller) Connected() bool {
	return c.client.Connected()
}

// Connect connects to the device if not already connected.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnected(ctx)
}

func (c *Controller) ensureConnected(ctx context.Context) error {
	if c.client.Connected() {
		return nil
	}
	return c.client.Reconnect(ctx, c.device.ID, c.device.Name)
}

// Send writes cmd to the device. A link that dropped since the last command,
// or during this one, is re-established once before giving up. On success the command is
// applied to the stored control state.
func (c *Controller) Send(ctx context.Context, cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	err := c.client.Send(ctx, cmd)
	if err != nil && linkLost(err, c.client) {
		slog.Info("[BLE] link lost, reconnecting", "id", c.device.ID)
		if rerr := c.client.Reconnect(ctx, c.device.ID, c.device.Name); rerr != nil {
			return fmt.Errorf("control: resend after reconnect: %w", rerr)
		}
		err = c.client.Send(ctx, cmd)
	}
	if err != nil {
		return err
	}

	c.store.ApplyCommand(cmd)
	if err := c.store.Save(); err != nil {
		slog.Warn("[STORE] failed to save control state", "error", err)
	}
	return nil
}

// linkLost reports whether a failed send left the client without a link,
// either by its error or because the client dropped its characteristic.
func linkLost(err error, client Client) bool {
	return errors.Is(err, ble.ErrNotConnected) ||
		errors.Is(err, ble.ErrMissingContext) ||
		!client.Connected()
}

// State returns the last values sent to the strip.
func (c *Controller) State() store.Control {
	return c.store.Control()
}

// Devices lists every device connected before, most recent first.
func (c *Controller) Devices() []store.DeviceRecord {
	return c.store.List()
}

// Close disconnects from the device.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.Close()
}
