package logic

// noCopy may be embedded in structs which must not be copied after first
// use. go vet's copylocks check reports copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Switch is the gesture context for one physical switch: the chatter filter
// in front of the state machine, plus the timing it needs.
//
// A Switch is not safe for concurrent use. It is meant to be driven from a
// single polling loop. Do not copy it; two copies would run two gesture
// timers for one switch.
type Switch struct {
	_ noCopy

	mode       Mode
	th         Thresholds
	state      State
	startTime  uint32 // when the current hold or double-press window began
	acceptedAt uint32 // last signal that passed the chatter filter
}

// New returns a Switch in the mode's initial state with default thresholds.
func New(mode Mode) *Switch {
	return &Switch{
		mode:  mode,
		th:    DefaultThresholds(),
		state: initialState(mode),
	}
}

// Signal feeds one sample taken at now (milliseconds on a monotonic clock).
//
// Samples arriving within the chatter window of the last accepted sample
// return Filtered and change nothing. The first sample is compared against
// a last-accepted time of zero, so the clock's epoch must precede real use
// by more than the chatter window.
func (s *Switch) Signal(high bool, now uint32) Classification {
	if now-s.acceptedAt <= s.th.Chatter {
		return Filtered
	}
	s.state, s.startTime = Next(s.state, high, now, s.startTime, s.th)
	s.acceptedAt = now
	return s.state.Classification()
}

// Reset puts the switch back in its initial state and clears all timestamps.
// Thresholds are kept.
func (s *Switch) Reset() {
	s.state = initialState(s.mode)
	s.startTime = 0
	s.acceptedAt = 0
}

// Mode returns the machine variant chosen at construction.
func (s *Switch) Mode() Mode { return s.mode }

// State returns the current machine state.
func (s *Switch) State() State { return s.state }

// Classification returns the current state's classification without
// feeding a signal.
func (s *Switch) Classification() Classification { return s.state.Classification() }

// Thresholds returns the current timing windows.
func (s *Switch) Thresholds() Thresholds { return s.th }

// LongPress returns the long-press threshold in milliseconds.
func (s *Switch) LongPress() uint32 { return s.th.LongPress }

// DoublePress returns the double-press window in milliseconds.
func (s *Switch) DoublePress() uint32 { return s.th.DoublePress }

// Chatter returns the chatter window in milliseconds.
func (s *Switch) Chatter() uint32 { return s.th.Chatter }

// SetLongPress changes the long-press threshold for subsequent signals.
func (s *Switch) SetLongPress(ms uint32) { s.th.LongPress = ms }

// SetDoublePress changes the double-press window for subsequent signals.
func (s *Switch) SetDoublePress(ms uint32) { s.th.DoublePress = ms }

// SetChatter changes the chatter window for subsequent signals.
func (s *Switch) SetChatter(ms uint32) { s.th.Chatter = ms }

// SetThresholds replaces all three windows at once.
func (s *Switch) SetThresholds(th Thresholds) { s.th = th }
