package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// PatternID indexes the controller's built-in animations.
type PatternID uint8

// Built-in patterns, in device order.
const (
	StaticRed PatternID = iota
	StaticBlue
	StaticGreen
	StaticCyan
	StaticYellow
	StaticPurple
	StaticWhite
	ThreeColorJumpingChange
	SevenColorJumpingChange
	ThreeColorCrossFade
	SevenColorCrossFade
	RedGradualChange
	GreenGradualChange
	BlueGradualChange
	YellowGradualChange
	CyanGradualChange
	PurpleGradualChange
	WhiteGradualChange
	RedGreenCrossFade
	RedBlueCrossFade
	GreenBlueCrossFade
	SevenColorStrobeFlash
	RedStrobeFlash
	GreenStrobeFlash
	BlueStrobeFlash
	YellowStrobeFlash
	CyanStrobeFlash
	PurpleStrobeFlash
	WhiteStrobeFlash
)

var patternNames = [...]string{
	"STATIC_RED",
	"STATIC_BLUE",
	"STATIC_GREEN",
	"STATIC_CYAN",
	"STATIC_YELLOW",
	"STATIC_PURPLE",
	"STATIC_WHITE",
	"THREE_COLOR_JUMPING_CHANGE",
	"SEVEN_COLOR_JUMPING_CHANGE",
	"THREE_COLOR_CROSS_FADE",
	"SEVEN_COLOR_CROSS_FADE",
	"RED_GRADUAL_CHANGE",
	"GREEN_GRADUAL_CHANGE",
	"BLUE_GRADUAL_CHANGE",
	"YELLOW_GRADUAL_CHANGE",
	"CYAN_GRADUAL_CHANGE",
	"PURPLE_GRADUAL_CHANGE",
	"WHITE_GRADUAL_CHANGE",
	"RED_GREEN_CROSS_FADE",
	"RED_BLUE_CROSS_FADE",
	"GREEN_BLUE_CROSS_FADE",
	"SEVEN_COLOR_STROBE_FLASH",
	"RED_STROBE_FLASH",
	"GREEN_STROBE_FLASH",
	"BLUE_STROBE_FLASH",
	"YELLOW_STROBE_FLASH",
	"CYAN_STROBE_FLASH",
	"PURPLE_STROBE_FLASH",
	"WHITE_STROBE_FLASH",
}

func (p PatternID) String() string {
	if int(p) < len(patternNames) {
		return patternNames[p]
	}
	return fmt.Sprintf("PATTERN_%d", uint8(p))
}

// DisplayName returns a human-friendly name, e.g. "Red Strobe Flash".
func (p PatternID) DisplayName() string {
	words := strings.Split(strings.ToLower(p.String()), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Patterns returns every built-in pattern in device order.
func Patterns() []PatternID {
	out := make([]PatternID, len(patternNames))
	for i := range patternNames {
		out[i] = PatternID(i)
	}
	return out
}

// ParsePattern accepts a pattern index ("22") or name ("red_strobe_flash",
// "Red Strobe Flash", "red-strobe-flash").
func ParsePattern(s string) (PatternID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > MaxPattern {
			return 0, fmt.Errorf("protocol: pattern index %d out of range 0-%d", n, MaxPattern)
		}
		return PatternID(n), nil
	}
	norm := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(s))
	for i, name := range patternNames {
		if name == norm {
			return PatternID(i), nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown pattern %q", s)
}
