package protocol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekdays is a bitmask of enabled days; bit 0 is Sunday.
type Weekdays uint8

const allWeekdays Weekdays = 0x7F

// EveryDay enables all seven weekdays.
const EveryDay = allWeekdays

// WeekdayMask packs days into a Weekdays bitmask.
func WeekdayMask(days ...time.Weekday) Weekdays {
	var m Weekdays
	for _, d := range days {
		if d >= time.Sunday && d <= time.Saturday {
			m |= 1 << uint(d)
		}
	}
	return m
}

// Has reports whether d is enabled.
func (w Weekdays) Has(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday && w&(1<<uint(d)) != 0
}

func (w Weekdays) String() string {
	if w&allWeekdays == allWeekdays {
		return "daily"
	}
	var days []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			days = append(days, strings.ToLower(d.String()[:3]))
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekdays parses a comma separated day list such as "mon,wed,fri".
// "daily" and "all" enable every day; "weekdays" and "weekend" are accepted.
func ParseWeekdays(s string) (Weekdays, error) {
	var m Weekdays
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "daily", "all":
			m |= EveryDay
		case "weekdays":
			m |= WeekdayMask(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
		case "weekend":
			m |= WeekdayMask(time.Saturday, time.Sunday)
		default:
			if len(part) < 3 {
				return 0, fmt.Errorf("protocol: unknown weekday %q", part)
			}
			d, ok := weekdayNames[part[:3]]
			if !ok {
				return 0, fmt.Errorf("protocol: unknown weekday %q", part)
			}
			m |= WeekdayMask(d)
		}
	}
	if m == 0 {
		return 0, fmt.Errorf("protocol: no weekdays in %q", s)
	}
	return m, nil
}

// Wire indices used by WireOrder.
const (
	WireRed   uint8 = 1
	WireGreen uint8 = 2
	WireBlue  uint8 = 3
)

// ParseWireOrder parses a channel order such as "rgb" or "GRB".
func ParseWireOrder(s string) (WireOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 3 {
		return WireOrder{}, fmt.Errorf("protocol: wire order %q must be a permutation of rgb", s)
	}
	var wires [3]uint8
	var seen [4]bool
	for i, ch := range s {
		var w uint8
		switch ch {
		case 'r':
			w = WireRed
		case 'g':
			w = WireGreen
		case 'b':
			w = WireBlue
		default:
			return WireOrder{}, fmt.Errorf("protocol: wire order %q must be a permutation of rgb", s)
		}
		if seen[w] {
			return WireOrder{}, fmt.Errorf("protocol: wire order %q repeats %c", s, ch)
		}
		seen[w] = true
		wires[i] = w
	}
	return WireOrder{First: wires[0], Second: wires[1], Third: wires[2]}, nil
}

// ParseColor accepts "#rrggbb", "rrggbb" or "r,g,b" with decimal components.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return Color{}, fmt.Errorf("protocol: color %q must have three components", s)
		}
		var rgb [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("protocol: color component %q: %w", p, err)
			}
			rgb[i] = uint8(v)
		}
		return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(raw) != 3 {
		return Color{}, fmt.Errorf("protocol: color %q must be #rrggbb or r,g,b", s)
	}
	return Color{R: raw[0], G: raw[1], B: raw[2]}, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (hour, minute, second uint8, err error) {
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("protocol: time %q: %w", s, err)
	}
	return uint8(t.Hour()), uint8(t.Minute()), uint8(t.Second()), nil
}
