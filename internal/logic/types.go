// Package logic contains the pure gesture logic for a single mechanical switch.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable: milliseconds for Switch, time.Time for Detector.
package logic

import (
	"fmt"
	"time"
)

// Classification is the public value reported for each machine state.
type Classification string

const (
	Idle          Classification = "IDLE"
	SinglePress   Classification = "SINGLE_PRESS"
	SingleHold    Classification = "SINGLE_HOLD"
	SingleRelease Classification = "SINGLE_RELEASE"
	DoubleIdle    Classification = "DOUBLE_IDLE"
	DoublePress   Classification = "DOUBLE_PRESS"
	DoubleHold    Classification = "DOUBLE_HOLD"
	DoubleRelease Classification = "DOUBLE_RELEASE"
	LongPress     Classification = "LONG_PRESS"
	LongHold      Classification = "LONG_HOLD"
	LongRelease   Classification = "LONG_RELEASE"
	ToggleOff     Classification = "TOGGLE_OFF"
	ToggleRising  Classification = "TOGGLE_RISING"
	ToggleOn      Classification = "TOGGLE_ON"
	ToggleFalling Classification = "TOGGLE_FALLING"

	// Filtered means the signal arrived inside the chatter window and was
	// dropped. The machine did not move.
	Filtered Classification = "FILTERED"
)

// Mode selects the machine variant. It is fixed at construction.
type Mode uint8

const (
	// ModeMomentary classifies single, double and long presses.
	ModeMomentary Mode = iota
	// ModeToggle runs the four-state on/off cycle.
	ModeToggle
)

func (m Mode) String() string {
	switch m {
	case ModeMomentary:
		return "momentary"
	case ModeToggle:
		return "toggle"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode converts "momentary" or "toggle" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "momentary", "":
		return ModeMomentary, nil
	case "toggle":
		return ModeToggle, nil
	default:
		return ModeMomentary, fmt.Errorf("unknown mode %q", s)
	}
}

// Default thresholds in milliseconds.
const (
	DefaultLongPressMs   = 500
	DefaultDoublePressMs = 200
	DefaultChatterMs     = 10
)

// Thresholds holds the three timing windows, all in milliseconds.
type Thresholds struct {
	LongPress   uint32 // hold longer than this becomes a long press
	DoublePress uint32 // gap after a release in which a second press counts
	Chatter     uint32 // minimum spacing between accepted signals
}

// DefaultThresholds returns 500ms long press, 200ms double press, 10ms chatter.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LongPress:   DefaultLongPressMs,
		DoublePress: DefaultDoublePressMs,
		Chatter:     DefaultChatterMs,
	}
}

// ThresholdUpdate changes some of the timing windows. Nil fields keep
// their current value.
type ThresholdUpdate struct {
	LongPress   *uint32
	DoublePress *uint32
	Chatter     *uint32
}

// Apply returns th with the update's set fields replaced.
func (u ThresholdUpdate) Apply(th Thresholds) Thresholds {
	if u.LongPress != nil {
		th.LongPress = *u.LongPress
	}
	if u.DoublePress != nil {
		th.DoublePress = *u.DoublePress
	}
	if u.Chatter != nil {
		th.Chatter = *u.Chatter
	}
	return th
}

// Empty reports whether the update sets nothing.
func (u ThresholdUpdate) Empty() bool {
	return u.LongPress == nil && u.DoublePress == nil && u.Chatter == nil
}

// Input represents a single sample of the switch level.
type Input struct {
	High bool // true = pressed/high, after any active-low inversion
	Time time.Time
}

// Event represents a classification change to be published.
type Event struct {
	Timestamp time.Time
	From      Classification
	To        Classification
}

// EventCounts counts entries into SinglePress, DoublePress, LongPress,
// ToggleOn and ToggleOff since startup, plus filtered samples. Every gesture
// begins with a SinglePress, so a double click also counts one Single and a
// long press one Single.
type EventCounts struct {
	Single    int
	Double    int
	Long      int
	ToggleOn  int
	ToggleOff int
	Filtered  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
