// Package store persists known devices and the last control state sent to
// them in a small YAML file next to the config.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceRecord is one device that has been connected at least once.
type DeviceRecord struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	LastConnected time.Time `yaml:"last_connected"`
}

// Devices holds the last connected device and every device seen before.
type Devices struct {
	LastID   string         `yaml:"last_id"`
	LastName string         `yaml:"last_name"`
	Known    []DeviceRecord `yaml:"known"`
}

type state struct {
	Devices Devices `yaml:"devices"`
	Control Control `yaml:"control"`
}

// Store is a YAML-backed state file. It is safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	state state
}

// Load reads the state file at path. A missing file yields an empty store
// with default control state; it is created on the first Save.
func Load(path string) (*Store, error) {
	s := &Store{
		path:  path,
		now:   time.Now,
		state: state{Control: DefaultControl()},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return s, nil
}

// Path returns the file the store saves to.
func (s *Store) Path() string {
	return s.path
}

// Save writes the state to disk. The write goes to a temporary file in the
// same directory which is then renamed over the old one.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := yaml.Marshal(&s.state)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// RecordConnection marks id as the last connected device and saves.
// An empty name keeps the previously stored one.
func (s *Store) RecordConnection(id, name string) error {
	if id == "" {
		return fmt.Errorf("store: empty device id")
	}

	s.mu.Lock()
	now := s.now()
	d := &s.state.Devices
	idx := d.index(id)
	if name == "" && idx >= 0 {
		name = d.Known[idx].Name
	}
	rec := DeviceRecord{ID: id, Name: name, LastConnected: now}
	if idx >= 0 {
		d.Known[idx] = rec
	} else {
		d.Known = append(d.Known, rec)
	}
	d.LastID = id
	d.LastName = name
	s.mu.Unlock()

	slog.Debug("[STORE] recorded connection", "id", id, "name", name)
	return s.Save()
}

// Forget removes a device. If it was the last connected device, the most
// recent remaining one takes its place. It reports whether id was known.
func (s *Store) Forget(id string) (bool, error) {
	s.mu.Lock()
	d := &s.state.Devices
	idx := d.index(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	d.Known = append(d.Known[:idx], d.Known[idx+1:]...)
	if strings.EqualFold(d.LastID, id) {
		d.LastID, d.LastName = "", ""
		if recs := d.sorted(); len(recs) > 0 {
			d.LastID, d.LastName = recs[0].ID, recs[0].Name
		}
	}
	s.mu.Unlock()

	return true, s.Save()
}

// Last returns the most recently connected device.
func (s *Store) Last() (DeviceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.state.Devices
	if d.LastID == "" {
		return DeviceRecord{}, false
	}
	if idx := d.index(d.LastID); idx >= 0 {
		return d.Known[idx], true
	}
	return DeviceRecord{ID: d.LastID, Name: d.LastName}, true
}

// List returns known devices, most recently connected first.
func (s *Store) List() []DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Devices.sorted()
}

// Lookup finds a known device by ID, ignoring case.
func (s *Store) Lookup(id string) (DeviceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.state.Devices
	if idx := d.index(id); idx >= 0 {
		return d.Known[idx], true
	}
	return DeviceRecord{}, false
}

func (d *Devices) index(id string) int {
	for i, rec := range d.Known {
		if strings.EqualFold(rec.ID, id) {
			return i
		}
	}
	return -1
}

func (d *Devices) sorted() []DeviceRecord {
	recs := make([]DeviceRecord, len(d.Known))
	copy(recs, d.Known)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].LastConnected.After(recs[j].LastConnected)
	})
	return recs
}
