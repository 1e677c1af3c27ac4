package ble

import "errors"

var (
	// ErrConnectionFailed wraps the platform error for a failed connect.
	ErrConnectionFailed = errors.New("ble: connection failed")

	// ErrNoServicesFound means discovery finished with no services and no platform error.
	ErrNoServicesFound = errors.New("ble: no services found")

	// ErrNoCharacteristicsFound means discovery finished with no characteristics and no platform error.
	ErrNoCharacteristicsFound = errors.New("ble: no characteristics found")

	// ErrMissingContext means a service or characteristic lost its owning peripheral.
	ErrMissingContext = errors.New("ble: handle has no owning peripheral")

	// ErrWriteFailed wraps the platform error for a failed write.
	ErrWriteFailed = errors.New("ble: write failed")

	// ErrSuperseded resolves a pending request replaced by a newer one for the same target.
	ErrSuperseded = errors.New("ble: request superseded")

	// ErrNotPoweredOn means the adapter is off or not yet enabled.
	ErrNotPoweredOn = errors.New("ble: adapter not powered on")

	// ErrNotConnected means no control characteristic is available.
	ErrNotConnected = errors.New("ble: not connected")

	// ErrUnsupportedWriteMode means the platform cannot perform the requested write mode.
	ErrUnsupportedWriteMode = errors.New("ble: unsupported write mode")
)
