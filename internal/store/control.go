package store

import (
	"fmt"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
)

const maxRecentColors = 30

// Control mirrors the last values sent to the strip. The controller has no
// read-back, so this is the only record of what it is showing.
type Control struct {
	On             bool     `yaml:"on" json:"on"`
	Brightness     uint8    `yaml:"brightness" json:"brightness"`
	Color          string   `yaml:"color" json:"color"`
	RecentColors   []string `yaml:"recent_colors,omitempty" json:"recent_colors,omitempty"`
	Pattern        string   `yaml:"pattern" json:"pattern"`
	Speed          uint8    `yaml:"speed" json:"speed"`
	Mic            bool     `yaml:"mic" json:"mic"`
	MicEQ          int      `yaml:"mic_eq" json:"mic_eq"`
	MicSensitivity int      `yaml:"mic_sensitivity" json:"mic_sensitivity"`
}

// DefaultControl is the state of a freshly powered strip.
func DefaultControl() Control {
	return Control{
		On:             true,
		Brightness:     protocol.MaxBrightness,
		Color:          "#ffffff",
		Pattern:        protocol.RedStrobeFlash.String(),
		Speed:          50,
		MicSensitivity: 50,
	}
}

// Control returns a copy of the stored control state.
func (s *Store) Control() Control {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.state.Control
	c.RecentColors = append([]string(nil), c.RecentColors...)
	return c
}

// ApplyCommand records the effect of a command that was sent to the strip.
// Commands that do not change visible state (clock, timer, wiring) are ignored.
// Call Save to persist.
func (s *Store) ApplyCommand(cmd protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.state.Control
	switch v := cmd.(type) {
	case protocol.Power:
		c.On = v.On
	case protocol.Color:
		c.Color = colorHex(v)
		c.addRecent(c.Color)
	case protocol.Brightness:
		c.Brightness = min(v.Level, protocol.MaxBrightness)
	case protocol.Speed:
		c.Speed = min(v.Level, protocol.MaxSpeed)
	case protocol.Pattern:
		c.Pattern = min(v.ID, protocol.MaxPattern).String()
	case protocol.Mic:
		c.Mic = v.On
	case protocol.MicEQ:
		c.MicEQ = max(0, min(v.Mode, protocol.MaxMicEQMode))
	case protocol.MicSensitivity:
		c.MicSensitivity = max(0, min(v.Level, protocol.MaxSensitivity))
	}
}

// addRecent moves color to the front of the recent list.
func (c *Control) addRecent(color string) {
	recent := make([]string, 0, len(c.RecentColors)+1)
	recent = append(recent, color)
	for _, rc := range c.RecentColors {
		if rc != color {
			recent = append(recent, rc)
		}
	}
	if len(recent) > maxRecentColors {
		recent = recent[:maxRecentColors]
	}
	c.RecentColors = recent
}

func colorHex(c protocol.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
