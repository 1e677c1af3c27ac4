// Package protocol encodes LED controller commands into the fixed-length
// frames written to the control characteristic.
//
// Every frame has the layout
//
//	7E <class> <opcode> <params...> EF
//
// where the class byte and parameter padding are fixed per opcode.
package protocol

import (
	"encoding/hex"
	"time"
)

const (
	frameStart = 0x7E
	frameEnd   = 0xEF
)

// Parameter limits accepted by the controller. Larger values are clamped.
const (
	MaxBrightness  = 100
	MaxSpeed       = 100
	MaxPattern     = 28
	MaxMicEQMode   = 3
	MaxSensitivity = 100
)

// indexOffset is added to pattern and mic EQ indices before they go on the wire.
const indexOffset = 128

// Frame is an encoded command ready to be written to the device.
type Frame []byte

// String renders the frame as lowercase hex, e.g. "7e0404010001ff00ef".
func (f Frame) String() string {
	return hex.EncodeToString(f)
}

// Command is a single device capability with its parameters.
// The set of implementations is closed; use Encode to serialize one.
type Command interface {
	frame() Frame
}

// Encode serializes cmd into its wire frame. It never fails: out-of-range
// parameters are clamped to the nearest valid value.
func Encode(cmd Command) Frame {
	return cmd.frame()
}

// Power switches the light output on or off.
type Power struct {
	On bool
}

func (c Power) frame() Frame {
	v := boolByte(c.On)
	return Frame{frameStart, 0x04, 0x04, v, 0x00, v, 0xFF, 0x00, frameEnd}
}

// Color sets a static RGB color.
type Color struct {
	R, G, B uint8
}

func (c Color) frame() Frame {
	return Frame{frameStart, 0x07, 0x05, 0x03, c.R, c.G, c.B, 0x10, frameEnd}
}

// Brightness sets the output level, 0-100.
type Brightness struct {
	Level uint8
}

func (c Brightness) frame() Frame {
	return Frame{frameStart, 0x04, 0x01, clamp(c.Level, MaxBrightness), 0xFF, 0xFF, 0xFF, 0x00, frameEnd}
}

// Speed sets the animation playback speed, 0-100.
type Speed struct {
	Level uint8
}

func (c Speed) frame() Frame {
	return Frame{frameStart, 0x04, 0x02, clamp(c.Level, MaxSpeed), 0xFF, 0xFF, 0xFF, 0x00, frameEnd}
}

// Pattern selects one of the built-in animations.
type Pattern struct {
	ID PatternID
}

func (c Pattern) frame() Frame {
	id := clamp(uint8(c.ID), MaxPattern) + indexOffset
	return Frame{frameStart, 0x05, 0x03, id, 0x03, 0xFF, 0xFF, 0x00, frameEnd}
}

// Mic toggles microphone-reactive mode.
type Mic struct {
	On bool
}

func (c Mic) frame() Frame {
	return Frame{frameStart, 0x04, 0x07, boolByte(c.On), 0xFF, 0xFF, 0xFF, 0x00, frameEnd}
}

// MicEQ selects the microphone equalizer mode, 0-3.
type MicEQ struct {
	Mode int
}

func (c MicEQ) frame() Frame {
	mode := uint8(clampInt(c.Mode, MaxMicEQMode)) + indexOffset
	return Frame{frameStart, 0x05, 0x03, mode, 0x04, 0xFF, 0xFF, 0x00, frameEnd}
}

// MicSensitivity sets the microphone sensitivity, 0-100.
type MicSensitivity struct {
	Level int
}

func (c MicSensitivity) frame() Frame {
	return Frame{frameStart, 0x04, 0x06, uint8(clampInt(c.Level, MaxSensitivity)), 0xFF, 0xFF, 0xFF, 0x00, frameEnd}
}

// SyncTime sets the controller's clock. Weekday is 0 for Sunday.
type SyncTime struct {
	Hour, Minute, Second uint8
	Weekday              time.Weekday
}

// SyncTimeAt returns a SyncTime command for the wall clock reading of t.
func SyncTimeAt(t time.Time) SyncTime {
	return SyncTime{
		Hour:    uint8(t.Hour()),
		Minute:  uint8(t.Minute()),
		Second:  uint8(t.Second()),
		Weekday: t.Weekday(),
	}
}

func (c SyncTime) frame() Frame {
	return Frame{frameStart, 0x07, 0x83, c.Hour, c.Minute, c.Second, uint8(c.Weekday), 0xFF, frameEnd}
}

// Timer programs (Set) or clears the on-device schedule. TurnOn selects
// whether the timer switches the lights on or off when it fires.
type Timer struct {
	Hour, Minute, Second uint8
	Weekdays             Weekdays
	TurnOn               bool
	Set                  bool
}

func (c Timer) frame() Frame {
	// The controller encodes "switch on" as 0x00 and "switch off" as 0x01.
	action := uint8(0x01)
	if c.TurnOn {
		action = 0x00
	}
	mask := uint8(c.Weekdays & allWeekdays)
	if c.Set {
		mask |= 0x80
	}
	return Frame{frameStart, 0x08, 0x82, c.Hour, c.Minute, c.Second, action, mask, frameEnd}
}

// WireOrder remaps the color channels for strips wired in a non-RGB order.
// Each field is a wire index, see ParseWireOrder.
type WireOrder struct {
	First, Second, Third uint8
}

func (c WireOrder) frame() Frame {
	return Frame{frameStart, 0x06, 0x81, c.First, c.Second, c.Third, 0xFF, 0x00, frameEnd}
}

func boolByte(b bool) uint8 {
	if b {
		return 0x01
	}
	return 0x00
}

func clamp(v, max uint8) uint8 {
	if v > max {
		return max
	}
	return v
}

func clampInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
