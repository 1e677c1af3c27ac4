package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// PeripheralState is the app-side view of a peripheral's connection.
type PeripheralState int

const (
	StateUnknown PeripheralState = iota
	StateDiscovered
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s PeripheralState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	OpTimeout   time.Duration // deadline applied when the caller's ctx has none; 0 disables
	ServiceUUID string        // service used to filter RefreshConnectionState
	ScanBuffer  int           // discovery channel capacity
}

// DefaultSessionOptions returns sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		OpTimeout:   10 * time.Second,
		ServiceUUID: ServiceUUID,
		ScanBuffer:  64,
	}
}

// Session turns the callback-driven Central into blocking operations and
// mirrors per-peripheral connection state. Create one per Central.
type Session struct {
	central Central
	opts    SessionOptions
	pending *pendingOps

	mu           sync.Mutex
	poweredOn    bool
	states       map[string]PeripheralState
	connected    map[string]Peripheral
	anyConnected bool
	scanCh       chan Peripheral
	onDisconnect []func(Peripheral, error)
}

// NewSession creates a Session and registers it as central's delegate.
func NewSession(central Central, opts SessionOptions) *Session {
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = ServiceUUID
	}
	if opts.ScanBuffer <= 0 {
		opts.ScanBuffer = 64
	}
	s := &Session{
		central:   central,
		opts:      opts,
		pending:   newPendingOps(),
		states:    make(map[string]PeripheralState),
		connected: make(map[string]Peripheral),
	}
	central.SetDelegate(&sessionDelegate{s: s})
	return s
}

// Enable powers on the adapter.
func (s *Session) Enable() error {
	if err := s.central.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}
	s.mu.Lock()
	s.poweredOn = true
	s.mu.Unlock()
	return nil
}

// StartScan starts discovery and returns a channel of advertisements. The
// channel is closed by StopScan; a later StartScan returns a new channel.
// Repeated advertisements from one peripheral are all delivered.
func (s *Session) StartScan() (<-chan Peripheral, error) {
	s.mu.Lock()
	if !s.poweredOn {
		s.mu.Unlock()
		return nil, ErrNotPoweredOn
	}
	s.mu.Unlock()

	if err := s.RefreshConnectionState(); err != nil {
		slog.Warn("[BLE] refresh before scan failed", "error", err)
	}

	ch := make(chan Peripheral, s.opts.ScanBuffer)
	s.mu.Lock()
	if s.scanCh != nil {
		close(s.scanCh)
	}
	s.scanCh = ch
	s.mu.Unlock()

	if err := s.central.StartScan(); err != nil {
		s.mu.Lock()
		if s.scanCh == ch {
			close(ch)
			s.scanCh = nil
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("ble: start scan: %w", err)
	}
	slog.Debug("[BLE] scan started")
	return ch, nil
}

// StopScan halts discovery and closes the current scan channel. Pending
// connect, discover and write requests are not affected.
func (s *Session) StopScan() error {
	err := s.central.StopScan()
	s.mu.Lock()
	if s.scanCh != nil {
		close(s.scanCh)
		s.scanCh = nil
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("ble: stop scan: %w", err)
	}
	slog.Debug("[BLE] scan stopped")
	return nil
}

// Connect requests a connection to p and waits for the platform's answer.
// A second Connect for the same peripheral supersedes the first.
func (s *Session) Connect(ctx context.Context, p Peripheral) (Peripheral, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := connectKey(p.ID)
	w := s.pending.register(key)
	s.setState(p.ID, StateConnecting)
	slog.Debug("[BLE] connecting", "id", p.ID, "name", p.Name)

	if err := s.central.Connect(p); err != nil {
		s.pending.remove(key, w)
		s.setState(p.ID, StateDisconnected)
		return Peripheral{}, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, p.ID, err)
	}

	got, err := await[Peripheral](ctx, s.pending, key, w)
	if err != nil {
		s.mu.Lock()
		if s.states[p.ID] == StateConnecting && !s.pending.has(key) {
			s.states[p.ID] = StateDisconnected
		}
		s.mu.Unlock()
		return Peripheral{}, err
	}
	return got, nil
}

// DiscoverServices discovers the given services on a connected peripheral.
func (s *Session) DiscoverServices(ctx context.Context, p Peripheral, uuids []string) ([]*Service, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := servicesKey(p.ID)
	w := s.pending.register(key)
	if err := s.central.DiscoverServices(p, uuids); err != nil {
		s.pending.remove(key, w)
		return nil, fmt.Errorf("ble: discover services on %s: %w", p.ID, err)
	}
	return await[[]*Service](ctx, s.pending, key, w)
}

// DiscoverCharacteristics discovers the given characteristics of svc.
func (s *Session) DiscoverCharacteristics(ctx context.Context, svc *Service, uuids []string) ([]*Characteristic, error) {
	if svc == nil || svc.Peripheral == nil {
		return nil, ErrMissingContext
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := characteristicsKey(svc.Peripheral.ID, svc.UUID)
	w := s.pending.register(key)
	if err := s.central.DiscoverCharacteristics(svc, uuids); err != nil {
		s.pending.remove(key, w)
		return nil, fmt.Errorf("ble: discover characteristics on %s: %w", svc.UUID, err)
	}
	return await[[]*Characteristic](ctx, s.pending, key, w)
}

// Write sends data to c and waits for the platform's write completion.
func (s *Session) Write(ctx context.Context, data []byte, c *Characteristic, mode WriteMode) error {
	p := c.peripheral()
	if p == nil {
		return ErrMissingContext
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := writeKey(p.ID, c.UUID)
	w := s.pending.register(key)
	if err := s.central.WriteValue(c, data, mode); err != nil {
		s.pending.remove(key, w)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, c.UUID, err)
	}
	_, err := await[struct{}](ctx, s.pending, key, w)
	return err
}

// Disconnect asks the platform to drop p. It is a no-op when p is not in
// the connected set. The connected set only changes once the platform
// reports the disconnect.
func (s *Session) Disconnect(p Peripheral) error {
	s.mu.Lock()
	_, ok := s.connected[p.ID]
	s.mu.Unlock()
	if !ok {
		slog.Info("[BLE] disconnect skipped, peripheral not connected", "id", p.ID)
		return nil
	}
	slog.Info("[BLE] disconnecting", "id", p.ID, "name", p.Name)
	if err := s.central.CancelConnection(p); err != nil {
		return fmt.Errorf("ble: disconnect %s: %w", p.ID, err)
	}
	return nil
}

// RefreshConnectionState replaces the connected set with the platform's
// list of connected peripherals exposing the LED service.
func (s *Session) RefreshConnectionState() error {
	s.mu.Lock()
	on := s.poweredOn
	s.mu.Unlock()
	if !on {
		return ErrNotPoweredOn
	}

	list, err := s.central.ConnectedPeripherals(s.opts.ServiceUUID)
	if err != nil {
		return fmt.Errorf("ble: query connected peripherals: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.connected {
		s.states[id] = StateDisconnected
	}
	s.connected = make(map[string]Peripheral, len(list))
	for _, p := range list {
		s.connected[p.ID] = p
		s.states[p.ID] = StateConnected
	}
	s.anyConnected = len(s.connected) > 0
	slog.Debug("[BLE] connection state refreshed", "connected", s.anyConnected, "count", len(s.connected))
	return nil
}

// IsConnected reports whether any peripheral is connected.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anyConnected
}

// ConnectedPeripherals returns the connected set ordered by ID.
func (s *Session) ConnectedPeripherals() []Peripheral {
	s.mu.Lock()
	out := make([]Peripheral, 0, len(s.connected))
	for _, p := range s.connected {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State returns the tracked state of the peripheral with the given ID.
func (s *Session) State(id string) PeripheralState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// OnDisconnect registers fn to run whenever the platform reports a
// peripheral as dropped, and for each connected peripheral when the
// adapter powers off.
// fn runs on the callback goroutine and must not block.
func (s *Session) OnDisconnect(fn func(p Peripheral, err error)) {
	s.mu.Lock()
	s.onDisconnect = append(s.onDisconnect, fn)
	s.mu.Unlock()
}

func (s *Session) notifyDisconnect(p Peripheral, err error) {
	s.mu.Lock()
	handlers := make([]func(Peripheral, error), len(s.onDisconnect))
	copy(handlers, s.onDisconnect)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(p, err)
	}
}

func (s *Session) setState(id string, st PeripheralState) {
	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.opts.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

// sessionDelegate keeps the Delegate methods off Session's public API.
type sessionDelegate struct {
	s *Session
}

var _ Delegate = (*sessionDelegate)(nil)

func (d *sessionDelegate) DidUpdateState(poweredOn bool) {
	s := d.s
	s.mu.Lock()
	s.poweredOn = poweredOn
	if poweredOn {
		s.mu.Unlock()
		return
	}
	dropped := make([]Peripheral, 0, len(s.connected))
	for id, p := range s.connected {
		s.states[id] = StateDisconnected
		dropped = append(dropped, p)
	}
	s.connected = make(map[string]Peripheral)
	s.anyConnected = false
	s.mu.Unlock()

	slog.Warn("[BLE] adapter powered off")
	for _, p := range dropped {
		s.notifyDisconnect(p, ErrNotPoweredOn)
	}
}

func (d *sessionDelegate) DidDiscover(p Peripheral) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[p.ID]; !ok {
		s.states[p.ID] = StateDiscovered
	}
	if s.scanCh == nil {
		return
	}
	select {
	case s.scanCh <- p:
	default:
		slog.Debug("[BLE] scan channel full, dropping advertisement", "id", p.ID)
	}
}

func (d *sessionDelegate) DidConnect(p Peripheral) {
	s := d.s
	s.mu.Lock()
	if _, ok := s.connected[p.ID]; !ok {
		s.connected[p.ID] = p
	}
	s.states[p.ID] = StateConnected
	s.anyConnected = true
	s.mu.Unlock()

	slog.Info("[BLE] connected", "id", p.ID, "name", p.Name)
	s.pending.resolve(connectKey(p.ID), p, nil)
}

func (d *sessionDelegate) DidFailToConnect(p Peripheral, err error) {
	s := d.s
	s.setState(p.ID, StateDisconnected)
	slog.Warn("[BLE] connect failed", "id", p.ID, "error", err)
	if err == nil {
		err = fmt.Errorf("%w: %s", ErrConnectionFailed, p.ID)
	} else {
		err = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, p.ID, err)
	}
	s.pending.resolve(connectKey(p.ID), nil, err)
}

func (d *sessionDelegate) DidDisconnect(p Peripheral, err error) {
	s := d.s
	s.mu.Lock()
	_, was := s.connected[p.ID]
	delete(s.connected, p.ID)
	s.states[p.ID] = StateDisconnected
	s.anyConnected = len(s.connected) > 0
	s.mu.Unlock()

	if was {
		slog.Info("[BLE] disconnected", "id", p.ID, "name", p.Name, "error", err)
	}
	s.notifyDisconnect(p, err)
}

func (d *sessionDelegate) DidDiscoverServices(p Peripheral, services []*Service, err error) {
	switch {
	case err != nil:
		err = fmt.Errorf("ble: discover services on %s: %w", p.ID, err)
	case len(services) == 0:
		err = ErrNoServicesFound
	}
	if err != nil {
		d.s.pending.resolve(servicesKey(p.ID), nil, err)
		return
	}
	d.s.pending.resolve(servicesKey(p.ID), services, nil)
}

func (d *sessionDelegate) DidDiscoverCharacteristics(svc *Service, chars []*Characteristic, err error) {
	if svc == nil || svc.Peripheral == nil {
		slog.Warn("[BLE] characteristics reported for detached service")
		return
	}
	key := characteristicsKey(svc.Peripheral.ID, svc.UUID)
	switch {
	case err != nil:
		err = fmt.Errorf("ble: discover characteristics on %s: %w", svc.UUID, err)
	case len(chars) == 0:
		err = ErrNoCharacteristicsFound
	}
	if err != nil {
		d.s.pending.resolve(key, nil, err)
		return
	}
	for _, c := range chars {
		slog.Debug("[BLE] found characteristic", "uuid", c.UUID, "service", svc.UUID)
	}
	d.s.pending.resolve(key, chars, nil)
}

func (d *sessionDelegate) DidWriteValue(c *Characteristic, err error) {
	p := c.peripheral()
	if p == nil {
		slog.Warn("[BLE] write completion for detached characteristic")
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrWriteFailed, c.UUID, err)
	}
	d.s.pending.resolve(writeKey(p.ID, c.UUID), struct{}{}, err)
}
