package logic

// State is one node of the gesture machine. States carry no data; all
// timing lives in the Switch that owns them.
type State uint8

const (
	StateIdle State = iota
	StateSinglePress
	StateSingleHold
	StateSingleRelease
	StateDoubleIdle
	StateDoublePress
	StateDoubleHold
	StateDoubleRelease
	StateLongPress
	StateLongHold
	StateLongRelease
	StateToggleOff
	StateToggleRising
	StateToggleOn
	StateToggleFalling

	numStates
)

var classifications = [numStates]Classification{
	StateIdle:          Idle,
	StateSinglePress:   SinglePress,
	StateSingleHold:    SingleHold,
	StateSingleRelease: SingleRelease,
	StateDoubleIdle:    DoubleIdle,
	StateDoublePress:   DoublePress,
	StateDoubleHold:    DoubleHold,
	StateDoubleRelease: DoubleRelease,
	StateLongPress:     LongPress,
	StateLongHold:      LongHold,
	StateLongRelease:   LongRelease,
	StateToggleOff:     ToggleOff,
	StateToggleRising:  ToggleRising,
	StateToggleOn:      ToggleOn,
	StateToggleFalling: ToggleFalling,
}

// Classification returns the public value for s.
func (s State) Classification() Classification {
	if s >= numStates {
		return Idle
	}
	return classifications[s]
}

func (s State) String() string {
	return string(s.Classification())
}

// initialState returns the state a fresh switch of the given mode starts in.
func initialState(m Mode) State {
	if m == ModeToggle {
		return StateToggleOff
	}
	return StateIdle
}

// Next computes one transition. It returns the next state and the gesture
// start timestamp, which is only rewritten when a hold or double-press
// window begins. Elapsed times use unsigned subtraction and strict
// comparison, so an elapsed time equal to a threshold does not fire.
func Next(s State, high bool, now, start uint32, th Thresholds) (State, uint32) {
	switch s {
	case StateIdle:
		if high {
			return StateSinglePress, start
		}
		return StateIdle, start

	case StateSinglePress:
		if high {
			return StateSingleHold, now
		}
		return StateSingleRelease, start

	case StateSingleHold:
		if !high {
			return StateSingleRelease, start
		}
		if now-start > th.LongPress {
			return StateLongPress, start
		}
		return StateSingleHold, start

	case StateSingleRelease:
		if high {
			return StateDoublePress, start
		}
		return StateDoubleIdle, now

	case StateDoubleIdle:
		if high {
			return StateDoublePress, start
		}
		if now-start > th.DoublePress {
			return StateIdle, start
		}
		return StateDoubleIdle, start

	case StateDoublePress:
		if high {
			return StateDoubleHold, now
		}
		return StateDoubleRelease, start

	case StateDoubleHold:
		if !high {
			return StateDoubleRelease, start
		}
		if now-start > th.LongPress {
			return StateLongPress, start
		}
		return StateDoubleHold, start

	case StateDoubleRelease:
		if high {
			return StateDoublePress, start
		}
		return StateIdle, start

	case StateLongPress:
		if high {
			return StateLongHold, start
		}
		return StateLongRelease, start

	case StateLongHold:
		if high {
			return StateLongHold, start
		}
		return StateLongRelease, start

	case StateLongRelease:
		if high {
			return StateSinglePress, start
		}
		return StateIdle, start

	// Toggle cycle: each state moves only on its own edge.
	case StateToggleOff:
		if high {
			return StateToggleRising, start
		}
		return StateToggleOff, start

	case StateToggleRising:
		if !high {
			return StateToggleOn, start
		}
		return StateToggleRising, start

	case StateToggleOn:
		if high {
			return StateToggleFalling, start
		}
		return StateToggleOn, start

	case StateToggleFalling:
		if !high {
			return StateToggleOff, start
		}
		return StateToggleFalling, start
	}

	return s, start
}
