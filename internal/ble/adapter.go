// Package ble drives LED strip controllers over Bluetooth Low Energy. It
// bridges a callback-driven platform stack (Central + Delegate) into
// blocking, context-aware operations (Session) and sequences the
// connect/discover/write chain used to send commands (Client).
package ble

// LED controller BLE UUIDs
const (
	ServiceUUID     = "0000fff0-0000-1000-8000-00805f9b34fb"
	ControlCharUUID = "0000fff3-0000-1000-8000-00805f9b34fb"
)

// Peripheral identifies a remote BLE device. ID is the platform address
// (a MAC on Linux, a CoreBluetooth UUID on macOS).
type Peripheral struct {
	ID   string
	Name string
	RSSI int
}

// DisplayName returns Name, or ID when the device did not advertise a name.
func (p Peripheral) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Service is a discovered GATT service. Peripheral is nil for a detached handle.
type Service struct {
	UUID       string
	Peripheral *Peripheral
}

// Characteristic is a discovered GATT characteristic. Service is nil for a
// detached handle.
type Characteristic struct {
	UUID    string
	Service *Service
}

// peripheral walks the owning chain, returning nil if any link is missing.
func (c *Characteristic) peripheral() *Peripheral {
	if c == nil || c.Service == nil {
		return nil
	}
	return c.Service.Peripheral
}

// WriteMode selects acknowledged or unacknowledged writes.
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
)

// Central abstracts the platform BLE stack. Requests return immediately;
// their outcome is reported later through the Delegate. Implementations
// must deliver Delegate callbacks serially.
type Central interface {
	// SetDelegate registers the receiver of all platform callbacks.
	SetDelegate(d Delegate)
	// Enable powers on the adapter and reports the result via DidUpdateState.
	Enable() error
	// StartScan begins reporting advertisements via DidDiscover.
	StartScan() error
	// StopScan halts discovery. In-flight requests are unaffected.
	StopScan() error
	// Connect requests a connection; completes with DidConnect or DidFailToConnect.
	Connect(p Peripheral) error
	// CancelConnection requests a disconnect; completes with DidDisconnect.
	CancelConnection(p Peripheral) error
	// DiscoverServices completes with DidDiscoverServices.
	DiscoverServices(p Peripheral, uuids []string) error
	// DiscoverCharacteristics completes with DidDiscoverCharacteristics.
	DiscoverCharacteristics(s *Service, uuids []string) error
	// WriteValue completes with DidWriteValue.
	WriteValue(c *Characteristic, data []byte, mode WriteMode) error
	// ConnectedPeripherals synchronously lists the peripherals the system
	// currently holds a connection to that expose serviceUUID.
	ConnectedPeripherals(serviceUUID string) ([]Peripheral, error)
}

// Delegate receives platform callbacks. A nil error with an empty result
// slice means the platform found nothing.
type Delegate interface {
	DidUpdateState(poweredOn bool)
	DidDiscover(p Peripheral)
	DidConnect(p Peripheral)
	DidFailToConnect(p Peripheral, err error)
	DidDisconnect(p Peripheral, err error)
	DidDiscoverServices(p Peripheral, services []*Service, err error)
	DidDiscoverCharacteristics(s *Service, chars []*Characteristic, err error)
	DidWriteValue(c *Characteristic, err error)
}
