package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/store"
)

// parseCommand turns control command arguments into a protocol command.
// now is used by sync-time.
func parseCommand(args []string, now time.Time) (protocol.Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	name, rest := args[0], args[1:]

	switch name {
	case "power":
		on, err := needOnOff(name, rest)
		if err != nil {
			return nil, err
		}
		return protocol.Power{On: on}, nil

	case "color":
		if err := needArgs(name, rest, 1); err != nil {
			return nil, err
		}
		c, err := protocol.ParseColor(rest[0])
		if err != nil {
			return nil, err
		}
		return c, nil

	case "brightness":
		n, err := needLevel(name, rest, protocol.MaxBrightness)
		if err != nil {
			return nil, err
		}
		return protocol.Brightness{Level: uint8(n)}, nil

	case "speed":
		n, err := needLevel(name, rest, protocol.MaxSpeed)
		if err != nil {
			return nil, err
		}
		return protocol.Speed{Level: uint8(n)}, nil

	case "pattern":
		if err := needArgs(name, rest, 1); err != nil {
			return nil, err
		}
		id, err := protocol.ParsePattern(rest[0])
		if err != nil {
			return nil, err
		}
		return protocol.Pattern{ID: id}, nil

	case "mic":
		on, err := needOnOff(name, rest)
		if err != nil {
			return nil, err
		}
		return protocol.Mic{On: on}, nil

	case "mic-eq":
		n, err := needLevel(name, rest, protocol.MaxMicEQMode)
		if err != nil {
			return nil, err
		}
		return protocol.MicEQ{Mode: n}, nil

	case "mic-sensitivity":
		n, err := needLevel(name, rest, protocol.MaxSensitivity)
		if err != nil {
			return nil, err
		}
		return protocol.MicSensitivity{Level: n}, nil

	case "sync-time":
		if err := needArgs(name, rest, 0); err != nil {
			return nil, err
		}
		return protocol.SyncTimeAt(now), nil

	case "timer":
		return parseTimer(rest)

	case "wire-order":
		if err := needArgs(name, rest, 1); err != nil {
			return nil, err
		}
		w, err := protocol.ParseWireOrder(rest[0])
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	return nil, fmt.Errorf("unknown command %q", name)
}

// parseTimer handles "set|clear <HH:MM[:SS]> <days> on|off".
func parseTimer(args []string) (protocol.Command, error) {
	if err := needArgs("timer", args, 4); err != nil {
		return nil, err
	}

	var set bool
	switch args[0] {
	case "set":
		set = true
	case "clear":
	default:
		return nil, fmt.Errorf("timer: want set or clear, got %q", args[0])
	}

	h, m, s, err := protocol.ParseClock(args[1])
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	days, err := protocol.ParseWeekdays(args[2])
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	on, err := parseOnOff(args[3])
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}

	return protocol.Timer{
		Hour: h, Minute: m, Second: s,
		Weekdays: days,
		TurnOn:   on,
		Set:      set,
	}, nil
}

func needArgs(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: want %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func needOnOff(name string, args []string) (bool, error) {
	if err := needArgs(name, args, 1); err != nil {
		return false, err
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return on, nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func needLevel(name string, args []string, max int) (int, error) {
	if err := needArgs(name, args, 1); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > max {
		return 0, fmt.Errorf("%s: want a number 0-%d, got %q", name, max, args[0])
	}
	return n, nil
}

// resolveDevice picks the target device: the -device flag, then the
// configured default, then the last connected device on record.
func resolveDevice(flagID, configID string, st *store.Store) (id, name string, err error) {
	for _, candidate := range []string{flagID, configID} {
		if candidate == "" {
			continue
		}
		if rec, ok := st.Lookup(candidate); ok {
			return rec.ID, rec.Name, nil
		}
		return candidate, "", nil
	}
	if rec, ok := st.Last(); ok {
		return rec.ID, rec.Name, nil
	}
	return "", "", fmt.Errorf("no device selected: run 'ledctl scan' and pass -device, or set device in the config")
}
