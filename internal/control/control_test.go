package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chaz8081/ledctl/internal/ble"
	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/store"
)

// fakeClient records calls and lets tests script failures.
type fakeClient struct {
	connected    bool
	reconnectErr error
	sendErrs     []error // consumed one per Send
	dropOnError  bool    // a failed Send also loses the link
	reconnects   int
	sent         []protocol.Command
	closed       bool
}

func (f *fakeClient) Reconnect(ctx context.Context, id, name string) error {
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Send(ctx context.Context, cmd protocol.Command) error {
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			if f.dropOnError {
				f.connected = false
			}
			return err
		}
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeClient) Connected() bool { return f.connected }

func (f *fakeClient) Close() error {
	f.closed = true
	f.connected = false
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeClient, *store.Store) {
	t.Helper()
	st, err := store.Load(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}
	fc := &fakeClient{}
	return New(fc, st, Device{ID: "BE:16:FA:00:01:02", Name: "ELK-BLEDOM"}), fc, st
}

func TestSendConnectsOnDemand(t *testing.T) {
	c, fc, st := newTestController(t)

	if err := c.Send(context.Background(), protocol.Power{On: false}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if fc.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", fc.reconnects)
	}
	if err := c.Send(context.Background(), protocol.Brightness{Level: 40}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if fc.reconnects != 1 {
		t.Errorf("reconnects = %d, want no reconnect while connected", fc.reconnects)
	}
	if len(fc.sent) != 2 {
		t.Fatalf("sent = %v, want 2 commands", fc.sent)
	}

	reloaded, err := store.Load(st.Path())
	if err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}
	if got := reloaded.Control(); got.On || got.Brightness != 40 {
		t.Errorf("persisted control = %+v, want off at 40", got)
	}
}

func TestSendReconnectsAfterDrop(t *testing.T) {
	for _, dropErr := range []error{ble.ErrNotConnected, ble.ErrMissingContext} {
		t.Run(dropErr.Error(), func(t *testing.T) {
			c, fc, _ := newTestController(t)
			fc.connected = true
			fc.sendErrs = []error{dropErr}

			if err := c.Send(context.Background(), protocol.Mic{On: true}); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if fc.reconnects != 1 {
				t.Errorf("reconnects = %d, want 1", fc.reconnects)
			}
			if len(fc.sent) != 1 {
				t.Errorf("sent = %v, want the command resent once", fc.sent)
			}
			if !c.State().Mic {
				t.Error("State().Mic = false after successful resend")
			}
		})
	}
}

func TestSendFailureLeavesStateUnchanged(t *testing.T) {
	c, fc, _ := newTestController(t)
	fc.connected = true
	fc.sendErrs = []error{ble.ErrWriteFailed}

	err := c.Send(context.Background(), protocol.Power{On: false})
	if !errors.Is(err, ble.ErrWriteFailed) {
		t.Fatalf("Send() error = %v, want ErrWriteFailed", err)
	}
	if !c.State().On {
		t.Error("failed command must not be recorded")
	}
	if fc.reconnects != 0 {
		t.Errorf("reconnects = %d, write failures should not reconnect", fc.reconnects)
	}
}

func TestSendReconnectsWhenWriteLosesLink(t *testing.T) {
	c, fc, _ := newTestController(t)
	fc.connected = true
	fc.dropOnError = true
	fc.sendErrs = []error{ble.ErrWriteFailed}

	if err := c.Send(context.Background(), protocol.Speed{Level: 70}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if fc.reconnects != 1 || len(fc.sent) != 1 {
		t.Errorf("reconnects = %d, sent = %v, want one reconnect and one resend", fc.reconnects, fc.sent)
	}
	if got := c.State().Speed; got != 70 {
		t.Errorf("State().Speed = %d, want 70", got)
	}
}

func TestSendConnectFailure(t *testing.T) {
	c, fc, _ := newTestController(t)
	fc.reconnectErr = ble.ErrConnectionFailed

	err := c.Send(context.Background(), protocol.Speed{Level: 10})
	if !errors.Is(err, ble.ErrConnectionFailed) {
		t.Fatalf("Send() error = %v, want ErrConnectionFailed", err)
	}
	if len(fc.sent) != 0 {
		t.Error("nothing should be sent without a connection")
	}
}

func TestResendReconnectFailure(t *testing.T) {
	c, fc, _ := newTestController(t)
	fc.connected = true
	fc.sendErrs = []error{ble.ErrNotConnected}
	fc.reconnectErr = ble.ErrConnectionFailed

	err := c.Send(context.Background(), protocol.Speed{Level: 10})
	if !errors.Is(err, ble.ErrConnectionFailed) {
		t.Fatalf("Send() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndClose(t *testing.T) {
	c, fc, st := newTestController(t)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.Connected() {
		t.Error("Connected() = false after Connect()")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fc.closed || c.Connected() {
		t.Error("Close() should close the client")
	}

	if err := st.RecordConnection("BE:16:FA:00:01:02", "ELK-BLEDOM"); err != nil {
		t.Fatal(err)
	}
	if got := c.Devices(); len(got) != 1 || got[0].Name != "ELK-BLEDOM" {
		t.Errorf("Devices() = %+v", got)
	}
	if got := c.Device(); got.ID != "BE:16:FA:00:01:02" {
		t.Errorf("Device() = %+v", got)
	}
}
