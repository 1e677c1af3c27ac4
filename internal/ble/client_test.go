package ble

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
)

func newTestClient(t *testing.T) (*Client, *mockCentral, *fakeRecorder) {
	t.Helper()
	s, m := newTestSession(t, true)
	rec := &fakeRecorder{}
	c := NewClient(s, rec, DefaultClientOptions())
	c.backoff = func(int) time.Duration { return 0 }
	return c, m, rec
}

func TestClientConnectAndSend(t *testing.T) {
	c, m, rec := newTestClient(t)
	ctx := context.Background()

	if err := c.Connect(ctx, testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.Connected() {
		t.Fatal("Connected() = false after Connect()")
	}
	if len(rec.ids) != 1 || rec.ids[0] != testPeripheral.ID+"=ELK-BLEDOM" {
		t.Errorf("recorded = %v, want the connected device", rec.ids)
	}

	if err := c.Send(ctx, protocol.Color{R: 10, G: 20, B: 30}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	writes := m.writeLog()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	want := []byte{0x7E, 0x07, 0x05, 0x03, 10, 20, 30, 0x10, 0xEF}
	if !bytes.Equal(writes[0], want) {
		t.Errorf("write = %x, want %x", writes[0], want)
	}
	if m.modes[0] != WriteWithoutResponse {
		t.Errorf("write mode = %v, want without response", m.modes[0])
	}

	calls := m.callLog()
	wantOrder := []string{
		"connect:" + testPeripheral.ID,
		"services:" + testPeripheral.ID,
		"chars:" + ServiceUUID,
		"write:" + ControlCharUUID,
	}
	idx := 0
	for _, call := range calls {
		if idx < len(wantOrder) && call == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Errorf("calls = %v, want sequence %v", calls, wantOrder)
	}
}

func TestClientSendNotConnected(t *testing.T) {
	c, m, _ := newTestClient(t)

	err := c.Send(context.Background(), protocol.Power{On: true})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if len(m.writeLog()) != 0 {
		t.Error("Send() without a connection must not write")
	}
}

func TestClientConnectFailureClearsControl(t *testing.T) {
	c, m, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Connect(ctx, testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.connectFailures = 1
	if err := c.Connect(ctx, Peripheral{ID: "11:22:33:44:55:66"}); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if c.Connected() {
		t.Error("failed connect should clear the control characteristic")
	}
	if _, ok := c.Peripheral(); ok {
		t.Error("failed connect should clear the bound peripheral")
	}
}

func TestClientConnectNoServiceDisconnects(t *testing.T) {
	c, m, rec := newTestClient(t)
	m.emptyServices = true

	err := c.Connect(context.Background(), testPeripheral)
	if !errors.Is(err, ErrNoServicesFound) {
		t.Fatalf("Connect() error = %v, want ErrNoServicesFound", err)
	}
	if !m.hasCall("cancel:" + testPeripheral.ID) {
		t.Error("a half-set-up connection should be dropped")
	}
	if len(rec.ids) != 0 {
		t.Errorf("recorded = %v, want nothing on failure", rec.ids)
	}
}

func TestClientConnectNoCharacteristic(t *testing.T) {
	c, m, _ := newTestClient(t)
	m.emptyChars = true

	err := c.Connect(context.Background(), testPeripheral)
	if !errors.Is(err, ErrNoCharacteristicsFound) {
		t.Fatalf("Connect() error = %v, want ErrNoCharacteristicsFound", err)
	}
	if c.Connected() {
		t.Error("Connected() = true without a control characteristic")
	}
}

func TestClientRecorderErrorIsNotFatal(t *testing.T) {
	c, _, rec := newTestClient(t)
	rec.err = errors.New("disk full")

	if err := c.Connect(context.Background(), testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.Connected() {
		t.Error("recorder failure should not undo the connection")
	}
}

func TestClientReconnectRetries(t *testing.T) {
	c, m, _ := newTestClient(t)
	m.connectFailures = 2

	if err := c.Reconnect(context.Background(), testPeripheral.ID, testPeripheral.Name); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	connects := 0
	for _, call := range m.callLog() {
		if call == "connect:"+testPeripheral.ID {
			connects++
		}
	}
	if connects != 3 {
		t.Errorf("connect attempts = %d, want 3", connects)
	}
	if !c.Connected() {
		t.Error("Connected() = false after successful reconnect")
	}
}

func TestClientReconnectGivesUp(t *testing.T) {
	c, m, _ := newTestClient(t)
	m.connectFailures = 10

	err := c.Reconnect(context.Background(), testPeripheral.ID, "")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Reconnect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClientReconnectHonorsContext(t *testing.T) {
	c, m, _ := newTestClient(t)
	m.connectFailures = 10
	c.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Reconnect(ctx, testPeripheral.ID, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Reconnect() error = %v, want deadline exceeded", err)
	}
}

func TestClientClose(t *testing.T) {
	c, m, _ := newTestClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() on idle client error = %v", err)
	}

	if err := c.Connect(context.Background(), testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !m.hasCall("cancel:" + testPeripheral.ID) {
		t.Error("Close() should disconnect the bound peripheral")
	}
	if c.Connected() {
		t.Error("Connected() = true after Close()")
	}
}

func TestClientLinkLostClearsControl(t *testing.T) {
	c, m, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Connect(ctx, testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.dropLink(testPeripheral, errors.New("supervision timeout"))

	if c.Connected() {
		t.Fatal("Connected() = true after the platform dropped the link")
	}
	if _, ok := c.Peripheral(); ok {
		t.Error("dropped link should unbind the peripheral")
	}
	if err := c.Send(ctx, protocol.Power{On: true}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
	if len(m.writeLog()) != 0 {
		t.Error("Send() on a dropped link must not write")
	}

	if err := c.Reconnect(ctx, testPeripheral.ID, testPeripheral.Name); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if err := c.Send(ctx, protocol.Power{On: true}); err != nil {
		t.Fatalf("Send() after reconnect error = %v", err)
	}
	if len(m.writeLog()) != 1 {
		t.Errorf("writes = %d, want 1", len(m.writeLog()))
	}
}

func TestClientIgnoresOtherDisconnects(t *testing.T) {
	c, m, _ := newTestClient(t)

	if err := c.Connect(context.Background(), testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.d().DidDisconnect(Peripheral{ID: "11:22:33:44:55:66"}, nil)

	if !c.Connected() {
		t.Error("a different peripheral dropping should not clear the client")
	}
}

func TestClientPowerOffClearsControl(t *testing.T) {
	c, m, _ := newTestClient(t)

	if err := c.Connect(context.Background(), testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.d().DidUpdateState(false)

	if c.Connected() {
		t.Error("Connected() = true after the adapter powered off")
	}
}

func TestClientWriteFailureClearsControl(t *testing.T) {
	c, m, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Connect(ctx, testPeripheral); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.mu.Lock()
	m.writeErr = errors.New("gatt: not connected")
	m.mu.Unlock()

	if err := c.Send(ctx, protocol.Speed{Level: 5}); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Send() error = %v, want ErrWriteFailed", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after a failed write")
	}
}

func TestReconnectBackoff(t *testing.T) {
	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second, // still capped
	}

	for i, want := range delays {
		got := backoffDelay(i, 30)
		if got != want {
			t.Errorf("backoffDelay(%d, 30) = %v, want %v", i, got, want)
		}
	}
}

func TestBackoffDelayOverflowProtection(t *testing.T) {
	// Attempt=100 would cause 1<<100 overflow without the cap
	got := backoffDelay(100, 30)
	want := 30 * time.Second
	if got != want {
		t.Errorf("backoffDelay(100, 30) = %v, want %v (capped at max)", got, want)
	}
}

func TestScanForDevices(t *testing.T) {
	s, m := newTestSession(t, true)
	other := Peripheral{ID: "11:22:33:44:55:66", Name: "ELK-BLE", RSSI: -80}
	m.advertise = []Peripheral{
		testPeripheral,
		{ID: testPeripheral.ID, RSSI: -70},
		other,
		{ID: "99:99:99:99:99:99", Name: "Headphones", RSSI: -30},
	}

	devices, err := ScanForDevices(context.Background(), s, 30*time.Millisecond, "ELK")
	if err != nil {
		t.Fatalf("ScanForDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(devices), devices)
	}
	if devices[0].ID != testPeripheral.ID || devices[0].Name != "ELK-BLEDOM" || devices[0].RSSI != -50 {
		t.Errorf("devices[0] = %+v, want strongest reading with name kept", devices[0])
	}
	if devices[1].ID != other.ID {
		t.Errorf("devices[1] = %+v", devices[1])
	}
	if !m.hasCall("stop-scan") {
		t.Error("ScanForDevices() should stop scanning")
	}
}
