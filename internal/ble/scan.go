package ble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScanForDevices scans for timeout (or until ctx ends) and returns each
// peripheral once, keeping its strongest reading. If namePrefix is not
// empty, only peripherals whose name starts with it are returned.
func ScanForDevices(ctx context.Context, s *Session, timeout time.Duration, namePrefix string) ([]Peripheral, error) {
	ch, err := s.StartScan()
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := make(map[string]Peripheral)
	func() {
		for {
			select {
			case p, ok := <-ch:
				if !ok {
					return
				}
				prev, dup := seen[p.ID]
				if dup {
					if p.Name == "" {
						p.Name = prev.Name
					}
					if p.RSSI < prev.RSSI {
						p.RSSI = prev.RSSI
					}
				}
				seen[p.ID] = p
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.StopScan(); err != nil {
		return nil, err
	}

	devices := make([]Peripheral, 0, len(seen))
	for _, p := range seen {
		if namePrefix != "" && !strings.HasPrefix(p.Name, namePrefix) {
			continue
		}
		devices = append(devices, p)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	return devices, nil
}
