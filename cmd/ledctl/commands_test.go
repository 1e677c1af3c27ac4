package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chaz8081/ledctl/internal/ble/protocol"
	"github.com/chaz8081/ledctl/internal/store"
)

func TestParseCommand(t *testing.T) {
	now := time.Date(2025, 2, 9, 21, 30, 15, 0, time.UTC) // a Sunday

	tests := []struct {
		args []string
		want protocol.Command
	}{
		{[]string{"power", "on"}, protocol.Power{On: true}},
		{[]string{"power", "off"}, protocol.Power{On: false}},
		{[]string{"color", "#ff8000"}, protocol.Color{R: 255, G: 128, B: 0}},
		{[]string{"color", "1,2,3"}, protocol.Color{R: 1, G: 2, B: 3}},
		{[]string{"brightness", "75"}, protocol.Brightness{Level: 75}},
		{[]string{"speed", "0"}, protocol.Speed{Level: 0}},
		{[]string{"pattern", "red_strobe_flash"}, protocol.Pattern{ID: protocol.RedStrobeFlash}},
		{[]string{"pattern", "3"}, protocol.Pattern{ID: protocol.StaticCyan}},
		{[]string{"mic", "on"}, protocol.Mic{On: true}},
		{[]string{"mic-eq", "2"}, protocol.MicEQ{Mode: 2}},
		{[]string{"mic-sensitivity", "40"}, protocol.MicSensitivity{Level: 40}},
		{[]string{"sync-time"}, protocol.SyncTime{Hour: 21, Minute: 30, Second: 15, Weekday: time.Sunday}},
		{
			[]string{"timer", "set", "07:15", "weekdays", "on"},
			protocol.Timer{
				Hour: 7, Minute: 15,
				Weekdays: protocol.WeekdayMask(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
				TurnOn:   true,
				Set:      true,
			},
		},
		{
			[]string{"timer", "clear", "23:00:30", "sun", "off"},
			protocol.Timer{Hour: 23, Second: 30, Weekdays: protocol.WeekdayMask(time.Sunday)},
		},
		{[]string{"wire-order", "grb"}, protocol.WireOrder{First: protocol.WireGreen, Second: protocol.WireRed, Third: protocol.WireBlue}},
	}

	for _, tt := range tests {
		got, err := parseCommand(tt.args, now)
		if err != nil {
			t.Errorf("parseCommand(%v) error = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCommand(%v) = %#v, want %#v", tt.args, got, tt.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	bad := [][]string{
		{},
		{"dance"},
		{"power"},
		{"power", "maybe"},
		{"color"},
		{"color", "#12"},
		{"brightness", "101"},
		{"brightness", "-1"},
		{"speed", "fast"},
		{"pattern", "disco"},
		{"mic-eq", "4"},
		{"sync-time", "now"},
		{"timer", "set", "07:15", "daily"},
		{"timer", "toggle", "07:15", "daily", "on"},
		{"timer", "set", "25:00", "daily", "on"},
		{"timer", "set", "07:15", "someday", "on"},
		{"timer", "set", "07:15", "daily", "dim"},
		{"wire-order", "rrb"},
	}

	for _, args := range bad {
		if cmd, err := parseCommand(args, time.Now()); err == nil {
			t.Errorf("parseCommand(%v) = %#v, want error", args, cmd)
		}
	}
}

func TestResolveDevice(t *testing.T) {
	st, err := store.Load(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}

	if _, _, err := resolveDevice("", "", st); err == nil {
		t.Error("resolveDevice() with nothing to pick should fail")
	}

	if err := st.RecordConnection("AA:AA:AA:AA:AA:AA", "desk"); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordConnection("BB:BB:BB:BB:BB:BB", "shelf"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		flagID, cfgID  string
		wantID, wantNm string
	}{
		{"last connected", "", "", "BB:BB:BB:BB:BB:BB", "shelf"},
		{"config default", "", "aa:aa:aa:aa:aa:aa", "AA:AA:AA:AA:AA:AA", "desk"},
		{"flag wins", "CC:CC:CC:CC:CC:CC", "AA:AA:AA:AA:AA:AA", "CC:CC:CC:CC:CC:CC", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, name, err := resolveDevice(tt.flagID, tt.cfgID, st)
			if err != nil {
				t.Fatalf("resolveDevice() error = %v", err)
			}
			if id != tt.wantID || name != tt.wantNm {
				t.Errorf("resolveDevice() = %q, %q, want %q, %q", id, name, tt.wantID, tt.wantNm)
			}
		})
	}
}
