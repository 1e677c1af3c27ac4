package ble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBus          = "org.bluez"
	bluezDeviceIface  = "org.bluez.Device1"
	objectManagerCall = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZ answers ConnectedPeripherals from the BlueZ object tree on the
// system D-Bus, which sees connections made by any process.
type BlueZ struct {
	conn *dbus.Conn
}

// NewBlueZ connects to the system bus.
func NewBlueZ() (*BlueZ, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("ble: connect to system bus: %w", err)
	}
	return &BlueZ{conn: conn}, nil
}

var _ ConnectedQuerier = (*BlueZ)(nil)

// ConnectedPeripherals lists connected BlueZ devices that advertise serviceUUID.
func (b *BlueZ) ConnectedPeripherals(serviceUUID string) ([]Peripheral, error) {
	var objects managedObjects
	obj := b.conn.Object(bluezBus, "/")
	if err := obj.Call(objectManagerCall, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("ble: bluez managed objects: %w", err)
	}
	return connectedFromObjects(objects, serviceUUID), nil
}

// Close releases the bus connection.
func (b *BlueZ) Close() error {
	return b.conn.Close()
}

func connectedFromObjects(objects managedObjects, serviceUUID string) []Peripheral {
	var out []Peripheral
	for _, ifaces := range objects {
		props, ok := ifaces[bluezDeviceIface]
		if !ok {
			continue
		}
		connected, _ := props["Connected"].Value().(bool)
		if !connected {
			continue
		}
		uuids, _ := props["UUIDs"].Value().([]string)
		if !containsUUID(uuids, serviceUUID) {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		name, _ := props["Alias"].Value().(string)
		if name == "" {
			name, _ = props["Name"].Value().(string)
		}
		var rssi int
		if v, ok := props["RSSI"].Value().(int16); ok {
			rssi = int(v)
		}
		out = append(out, Peripheral{ID: addr, Name: name, RSSI: rssi})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsUUID(list []string, uuid string) bool {
	for _, u := range list {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	return false
}
