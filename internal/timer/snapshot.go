package timer

import (
	"encoding/json"
	"time"
)

type Mode string

const (
	ModeFocus Mode = "focus"
	ModeBreak Mode = "break"
)

const (
	DefaultFocusDurationSeconds = 25 * 60
	DefaultBreakDurationSeconds = 5 * 60

	MinDurationSeconds      = 60
	MaxFocusDurationSeconds = 2 * 60 * 60
	MaxBreakDurationSeconds = 60 * 60
)

// Snapshot is the durable state of one timer instance. The JSON field names
// are the storage wire format and must stay backward tolerant: older payloads
// with missing fields load with safe defaults.
type Snapshot struct {
	Mode                 Mode    `json:"mode"`
	RemainingSeconds     int     `json:"remainingSeconds"`
	IsRunning            bool    `json:"isRunning"`
	FocusDurationSeconds int     `json:"focusDurationSeconds"`
	BreakDurationSeconds int     `json:"breakDurationSeconds"`
	CycleStartedAt       *int64  `json:"cycleStartedAt,omitempty"` // epoch ms
	LastTickAt           *int64  `json:"lastTickAt,omitempty"`     // epoch ms
	LinkedTaskID         *string `json:"linkedTaskId,omitempty"`
}

// DefaultSnapshot is the state at first use: focus mode, default durations,
// not running.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     DefaultFocusDurationSeconds,
		IsRunning:            false,
		FocusDurationSeconds: DefaultFocusDurationSeconds,
		BreakDurationSeconds: DefaultBreakDurationSeconds,
	}
}

// DurationFor returns the configured full duration for a mode.
func (s Snapshot) DurationFor(mode Mode) int {
	if mode == ModeBreak {
		return s.BreakDurationSeconds
	}
	return s.FocusDurationSeconds
}

func (s Snapshot) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSnapshot parses a persisted payload without trusting it. Decoding is
// per field: a missing field, a wrong type, or an out-of-bound value falls
// back to that field's default while the rest of the payload is preserved.
// An unparseable payload yields the default snapshot.
func DecodeSnapshot(payload string) Snapshot {
	snap := DefaultSnapshot()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return snap
	}

	if mode, ok := decodeString(fields, "mode"); ok {
		if m := Mode(mode); m == ModeFocus || m == ModeBreak {
			snap.Mode = m
		}
	}
	if v, ok := decodeInt(fields, "focusDurationSeconds"); ok {
		if v >= MinDurationSeconds && v <= MaxFocusDurationSeconds {
			snap.FocusDurationSeconds = v
		}
	}
	if v, ok := decodeInt(fields, "breakDurationSeconds"); ok {
		if v >= MinDurationSeconds && v <= MaxBreakDurationSeconds {
			snap.BreakDurationSeconds = v
		}
	}

	snap.RemainingSeconds = snap.DurationFor(snap.Mode)
	if v, ok := decodeInt(fields, "remainingSeconds"); ok {
		snap.RemainingSeconds = clampInt(v, 0, snap.DurationFor(snap.Mode))
	}

	if v, ok := decodeBool(fields, "isRunning"); ok {
		snap.IsRunning = v
	}
	if v, ok := decodeInt64(fields, "cycleStartedAt"); ok {
		snap.CycleStartedAt = &v
	}
	if v, ok := decodeInt64(fields, "lastTickAt"); ok {
		snap.LastTickAt = &v
	}
	if v, ok := decodeString(fields, "linkedTaskId"); ok && v != "" {
		snap.LinkedTaskID = &v
	}

	snap.repairInvariants()
	return snap
}

// repairInvariants enforces the documented snapshot invariants after a
// tolerant decode: a running timer needs a last tick instant, and a cycle
// start only exists in focus mode.
func (s *Snapshot) repairInvariants() {
	if s.IsRunning && s.LastTickAt == nil {
		s.IsRunning = false
	}
	if !s.IsRunning {
		s.LastTickAt = nil
	}
	if s.Mode != ModeFocus {
		s.CycleStartedAt = nil
	}
}

// CatchUp accounts for wall-clock time that passed while no ticks fired
// (hidden tab, suspended process, closed browser). It subtracts the elapsed
// whole seconds since the last known-accurate instant and re-arms the tick
// clock. Applying it twice with the same clock reading is a no-op the second
// time. A running snapshot left at zero is valid; the next tick ends the
// phase.
func (s *Snapshot) CatchUp(now time.Time) {
	if !s.IsRunning || s.LastTickAt == nil {
		return
	}
	elapsed := (now.UnixMilli() - *s.LastTickAt) / 1000
	if elapsed <= 0 {
		return
	}
	s.RemainingSeconds -= int(elapsed)
	if s.RemainingSeconds < 0 {
		s.RemainingSeconds = 0
	}
	ms := now.UnixMilli()
	s.LastTickAt = &ms
}

func decodeString(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func decodeBool(fields map[string]json.RawMessage, key string) (bool, bool) {
	raw, ok := fields[key]
	if !ok {
		return false, false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}

func decodeInt(fields map[string]json.RawMessage, key string) (int, bool) {
	v, ok := decodeInt64(fields, key)
	return int(v), ok
}

func decodeInt64(fields map[string]json.RawMessage, key string) (int64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
