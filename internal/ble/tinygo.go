package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// ConnectedQuerier lists peripherals the operating system is connected to.
// tinygo/bluetooth has no such query, so the platform supplies one (BlueZ).
type ConnectedQuerier interface {
	ConnectedPeripherals(serviceUUID string) ([]Peripheral, error)
}

type handleKey struct {
	id   string
	uuid string
}

// TinyGoCentral implements Central on top of tinygo-org/bluetooth. The
// tinygo calls block, so each request runs on its own goroutine and posts
// its completion to a single callback goroutine; Delegate callbacks are
// therefore never concurrent.
type TinyGoCentral struct {
	adapter *bluetooth.Adapter
	querier ConnectedQuerier

	callbacks chan func()

	// mu protects everything below.
	mu       sync.Mutex
	delegate Delegate
	addrs    map[string]bluetooth.Address
	peers    map[string]Peripheral
	devices  map[string]*bluetooth.Device
	services map[handleKey]*bluetooth.DeviceService
	chars    map[handleKey]*bluetooth.DeviceCharacteristic
}

// NewTinyGoCentral creates a Central using the default system adapter.
// querier may be nil, in which case ConnectedPeripherals reports only the
// connections made through this Central.
func NewTinyGoCentral(querier ConnectedQuerier) *TinyGoCentral {
	c := &TinyGoCentral{
		adapter:   bluetooth.DefaultAdapter,
		querier:   querier,
		callbacks: make(chan func(), 256),
		addrs:     make(map[string]bluetooth.Address),
		peers:     make(map[string]Peripheral),
		devices:   make(map[string]*bluetooth.Device),
		services:  make(map[handleKey]*bluetooth.DeviceService),
		chars:     make(map[handleKey]*bluetooth.DeviceCharacteristic),
	}
	go c.callbackLoop()
	return c
}

// Compile-time check that TinyGoCentral implements Central.
var _ Central = (*TinyGoCentral)(nil)

func (c *TinyGoCentral) callbackLoop() {
	for fn := range c.callbacks {
		fn()
	}
}

// post queues fn to run on the callback goroutine with the current delegate.
func (c *TinyGoCentral) post(fn func(d Delegate)) {
	c.callbacks <- func() {
		c.mu.Lock()
		d := c.delegate
		c.mu.Unlock()
		if d != nil {
			fn(d)
		}
	}
}

func (c *TinyGoCentral) SetDelegate(d Delegate) {
	c.mu.Lock()
	c.delegate = d
	c.mu.Unlock()
}

func (c *TinyGoCentral) Enable() error {
	if err := c.adapter.Enable(); err != nil {
		return err
	}

	// tinygo reports drops through the adapter-wide connect handler.
	c.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		c.dropped(device.Address.String(), nil)
	})

	c.post(func(d Delegate) { d.DidUpdateState(true) })
	return nil
}

func (c *TinyGoCentral) StartScan() error {
	go func() {
		err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			p := Peripheral{
				ID:   result.Address.String(),
				Name: result.LocalName(),
				RSSI: int(result.RSSI),
			}
			c.mu.Lock()
			c.addrs[p.ID] = result.Address
			c.mu.Unlock()
			c.post(func(d Delegate) { d.DidDiscover(p) })
		})
		if err != nil {
			slog.Warn("[BLE] scan ended with error", "error", err)
		}
	}()
	return nil
}

func (c *TinyGoCentral) StopScan() error {
	return c.adapter.StopScan()
}

func (c *TinyGoCentral) Connect(p Peripheral) error {
	c.mu.Lock()
	addr, ok := c.addrs[p.ID]
	c.mu.Unlock()
	if !ok {
		// Not seen in this process; parse the stored identifier.
		addr.Set(p.ID)
	}

	go func() {
		device, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			c.post(func(d Delegate) { d.DidFailToConnect(p, err) })
			return
		}
		c.mu.Lock()
		c.devices[p.ID] = &device
		c.peers[p.ID] = p
		c.mu.Unlock()
		c.post(func(d Delegate) { d.DidConnect(p) })
	}()
	return nil
}

func (c *TinyGoCentral) CancelConnection(p Peripheral) error {
	c.mu.Lock()
	device, ok := c.devices[p.ID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: no connection handle for %s", p.ID)
	}
	go func() {
		if err := device.Disconnect(); err != nil {
			slog.Warn("[BLE] disconnect request failed", "id", p.ID, "error", err)
			return
		}
		c.dropped(p.ID, nil)
	}()
	return nil
}

// dropped forgets the handles of a disconnected peripheral and reports it
// once, whether the drop came from CancelConnection or the connect handler.
func (c *TinyGoCentral) dropped(id string, cause error) {
	c.mu.Lock()
	p, ok := c.peers[id]
	delete(c.peers, id)
	delete(c.devices, id)
	for k := range c.services {
		if k.id == id {
			delete(c.services, k)
		}
	}
	for k := range c.chars {
		if k.id == id {
			delete(c.chars, k)
		}
	}
	c.mu.Unlock()
	if ok {
		c.post(func(d Delegate) { d.DidDisconnect(p, cause) })
	}
}

func (c *TinyGoCentral) DiscoverServices(p Peripheral, uuids []string) error {
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return err
	}
	c.mu.Lock()
	device, ok := c.devices[p.ID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: no connection handle for %s", p.ID)
	}

	go func() {
		svcs, err := device.DiscoverServices(filter)
		if err != nil {
			c.post(func(d Delegate) { d.DidDiscoverServices(p, nil, err) })
			return
		}
		owner := p
		out := make([]*Service, 0, len(svcs))
		c.mu.Lock()
		for i := range svcs {
			svc := svcs[i]
			uuid := svc.UUID().String()
			c.services[handleKey{p.ID, uuid}] = &svc
			out = append(out, &Service{UUID: uuid, Peripheral: &owner})
		}
		c.mu.Unlock()
		c.post(func(d Delegate) { d.DidDiscoverServices(p, out, nil) })
	}()
	return nil
}

func (c *TinyGoCentral) DiscoverCharacteristics(s *Service, uuids []string) error {
	if s == nil || s.Peripheral == nil {
		return ErrMissingContext
	}
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return err
	}
	c.mu.Lock()
	svc, ok := c.services[handleKey{s.Peripheral.ID, s.UUID}]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: no service handle for %s on %s", s.UUID, s.Peripheral.ID)
	}

	go func() {
		chars, err := svc.DiscoverCharacteristics(filter)
		if err != nil {
			c.post(func(d Delegate) { d.DidDiscoverCharacteristics(s, nil, err) })
			return
		}
		out := make([]*Characteristic, 0, len(chars))
		c.mu.Lock()
		for i := range chars {
			ch := chars[i]
			uuid := ch.UUID().String()
			c.chars[handleKey{s.Peripheral.ID, uuid}] = &ch
			out = append(out, &Characteristic{UUID: uuid, Service: s})
		}
		c.mu.Unlock()
		c.post(func(d Delegate) { d.DidDiscoverCharacteristics(s, out, nil) })
	}()
	return nil
}

func (c *TinyGoCentral) WriteValue(ch *Characteristic, data []byte, mode WriteMode) error {
	p := ch.peripheral()
	if p == nil {
		return ErrMissingContext
	}
	// Acknowledged writes are only available on the darwin and windows backends.
	if mode != WriteWithoutResponse {
		return fmt.Errorf("%w: mode %d", ErrUnsupportedWriteMode, mode)
	}
	c.mu.Lock()
	handle, ok := c.chars[handleKey{p.ID, ch.UUID}]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: no characteristic handle for %s on %s", ch.UUID, p.ID)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	go func() {
		_, err := handle.WriteWithoutResponse(buf)
		c.post(func(d Delegate) { d.DidWriteValue(ch, err) })
	}()
	return nil
}

func (c *TinyGoCentral) ConnectedPeripherals(serviceUUID string) ([]Peripheral, error) {
	if c.querier != nil {
		return c.querier.ConnectedPeripherals(serviceUUID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Peripheral, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out, nil
}

func parseUUIDs(in []string) ([]bluetooth.UUID, error) {
	out := make([]bluetooth.UUID, 0, len(in))
	for _, s := range in {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ble: parse UUID %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}
