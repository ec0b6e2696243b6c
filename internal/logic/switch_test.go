package logic

import "testing"

// step is one scripted call to Signal and the classification it must return.
type step struct {
	high bool
	now  uint32
	want Classification
}

func runSteps(t *testing.T, sw *Switch, steps []step) {
	t.Helper()
	for i, s := range steps {
		got := sw.Signal(s.high, s.now)
		if got != s.want {
			t.Fatalf("step %d (high=%v now=%d): got %s, want %s", i, s.high, s.now, got, s.want)
		}
	}
}

func TestNewMomentary(t *testing.T) {
	sw := New(ModeMomentary)
	if sw.Mode() != ModeMomentary {
		t.Errorf("mode: got %v, want momentary", sw.Mode())
	}
	if sw.Classification() != Idle {
		t.Errorf("initial classification: got %s, want IDLE", sw.Classification())
	}
	if sw.LongPress() != 500 {
		t.Errorf("long press: got %d, want 500", sw.LongPress())
	}
	if sw.DoublePress() != 200 {
		t.Errorf("double press: got %d, want 200", sw.DoublePress())
	}
	if sw.Chatter() != 10 {
		t.Errorf("chatter: got %d, want 10", sw.Chatter())
	}
}

func TestNewToggle(t *testing.T) {
	sw := New(ModeToggle)
	if sw.Mode() != ModeToggle {
		t.Errorf("mode: got %v, want toggle", sw.Mode())
	}
	if sw.State() != StateToggleOff {
		t.Errorf("initial state: got %s, want TOGGLE_OFF", sw.State())
	}
	if sw.Thresholds() != DefaultThresholds() {
		t.Errorf("thresholds: got %+v, want defaults", sw.Thresholds())
	}
}

func TestChatterBurstIsFiltered(t *testing.T) {
	sw := New(ModeMomentary)

	if got := sw.Signal(true, 100); got != SinglePress {
		t.Fatalf("first accepted call: got %s, want SINGLE_PRESS", got)
	}

	// Everything within 10ms of the accepted call is dropped, including
	// the boundary itself.
	for _, now := range []uint32{101, 105, 109, 110} {
		if got := sw.Signal(false, now); got != Filtered {
			t.Errorf("now=%d: got %s, want FILTERED", now, got)
		}
		if sw.State() != StateSinglePress {
			t.Fatalf("now=%d: state moved to %s during filtering", now, sw.State())
		}
	}

	// Filtered calls did not move the accepted timestamp: 111 is 11ms after 100.
	if got := sw.Signal(false, 111); got != SingleRelease {
		t.Errorf("after window: got %s, want SINGLE_RELEASE", got)
	}
}

func TestFirstCallInsideChatterWindowOfZero(t *testing.T) {
	// The last accepted time starts at zero and the first call is not
	// special-cased: a clock that starts inside the chatter window filters.
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 0, Filtered},
		{true, 10, Filtered},
		{true, 11, SinglePress},
	})
}

func TestSingleClickReturnsToIdle(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{false, 140, DoubleIdle}, // double-press window starts at 140
		{false, 300, DoubleIdle},
		{false, 340, DoubleIdle}, // exactly 200ms: not yet
		{false, 351, Idle},
	})
}

func TestDoubleIdleBoundary(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{false, 140, DoubleIdle},
		{false, 341, Idle},
	})
}

func TestLongPress(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold}, // hold timer starts at 120
		{true, 400, SingleHold},
		{true, 620, SingleHold}, // exactly 500ms: not yet
		{true, 631, LongPress},
		{false, 650, LongRelease},
		{false, 670, Idle},
	})
}

func TestLongPressBoundaryOneMillisecondOver(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold},
		{true, 621, LongPress},
	})
}

func TestLongHoldThenPressAgain(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold},
		{true, 700, LongPress},
		{true, 720, LongHold},
		{true, 5000, LongHold},
		{false, 5020, LongRelease},
		{true, 5040, SinglePress},
	})
}

func TestDoubleClick(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{true, 140, DoublePress},
		{false, 160, DoubleRelease},
		{false, 180, Idle},
	})
}

func TestDoubleClickFromDoubleIdle(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{false, 140, DoubleIdle},
		{false, 200, DoubleIdle},
		{true, 300, DoublePress},
		{false, 320, DoubleRelease},
		{true, 340, DoublePress}, // another press straight from DoubleRelease
	})
}

func TestDoubleHoldBecomesLongPress(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{true, 140, DoublePress},
		{true, 160, DoubleHold}, // hold timer restarts at 160
		{true, 660, DoubleHold},
		{true, 661, Filtered}, // inside chatter of 660
		{true, 671, LongPress},
		{false, 690, LongRelease},
	})
}

func TestDoubleHoldReleased(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, SingleRelease},
		{true, 140, DoublePress},
		{true, 160, DoubleHold},
		{false, 300, DoubleRelease},
		{false, 320, Idle},
	})
}

func TestShorterLongPressAppliesToNextCall(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold},
		{true, 400, SingleHold}, // 280ms against 500ms
	})

	sw.SetLongPress(200)
	if sw.State() != StateSingleHold {
		t.Fatalf("setter moved state to %s", sw.State())
	}

	runSteps(t, sw, []step{
		{true, 411, LongPress}, // 291ms against 200ms
	})
}

func TestLongerLongPressDoesNotResetTimer(t *testing.T) {
	sw := New(ModeMomentary)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold},
		{true, 600, SingleHold},
	})

	sw.SetLongPress(1000)

	runSteps(t, sw, []step{
		{true, 700, SingleHold},  // 580ms against 1000ms
		{true, 1120, SingleHold}, // exactly 1000ms, still measured from 120
		{true, 1131, LongPress},
	})
}

func TestSetDoublePressAndChatter(t *testing.T) {
	sw := New(ModeMomentary)
	sw.SetDoublePress(50)
	sw.SetChatter(30)

	if sw.DoublePress() != 50 || sw.Chatter() != 30 {
		t.Fatalf("setters: got double=%d chatter=%d", sw.DoublePress(), sw.Chatter())
	}

	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{false, 120, Filtered}, // 20ms < 30ms chatter
		{false, 131, SingleRelease},
		{false, 162, DoubleIdle},
		{false, 212, DoubleIdle}, // exactly 50ms
		{false, 243, Idle},
	})
}

func TestSetThresholds(t *testing.T) {
	sw := New(ModeMomentary)
	th := Thresholds{LongPress: 1, DoublePress: 2, Chatter: 3}
	sw.SetThresholds(th)
	if sw.Thresholds() != th {
		t.Errorf("got %+v, want %+v", sw.Thresholds(), th)
	}
}

func TestToggleCycle(t *testing.T) {
	sw := New(ModeToggle)
	runSteps(t, sw, []step{
		{true, 100, ToggleRising},
		{false, 120, ToggleOn},
		{true, 140, ToggleFalling},
		{false, 160, ToggleOff},
	})
	if sw.State() != StateToggleOff {
		t.Errorf("full cycle should return to TOGGLE_OFF, got %s", sw.State())
	}
}

func TestToggleIgnoresNonTransitionEdge(t *testing.T) {
	sw := New(ModeToggle)
	runSteps(t, sw, []step{
		{false, 100, ToggleOff},
		{true, 120, ToggleRising},
		{true, 140, ToggleRising},
		{false, 160, ToggleOn},
		{false, 180, ToggleOn},
		{true, 200, ToggleFalling},
		{true, 220, ToggleFalling},
		{false, 240, ToggleOff},
	})
}

func TestToggleIgnoresLongHold(t *testing.T) {
	sw := New(ModeToggle)
	runSteps(t, sw, []step{
		{true, 100, ToggleRising},
		{true, 10000, ToggleRising},
		{false, 10020, ToggleOn},
	})
}

func TestReset(t *testing.T) {
	sw := New(ModeMomentary)
	sw.SetLongPress(900)
	runSteps(t, sw, []step{
		{true, 100, SinglePress},
		{true, 120, SingleHold},
	})

	sw.Reset()
	if sw.State() != StateIdle {
		t.Errorf("after reset: got %s, want IDLE", sw.State())
	}
	if sw.LongPress() != 900 {
		t.Errorf("reset should keep thresholds, got long press %d", sw.LongPress())
	}

	// Accepted timestamp is cleared too, so 11ms is accepted again.
	runSteps(t, sw, []step{{true, 11, SinglePress}})

	tg := New(ModeToggle)
	tg.Signal(true, 100)
	tg.Reset()
	if tg.State() != StateToggleOff {
		t.Errorf("toggle after reset: got %s, want TOGGLE_OFF", tg.State())
	}
}

func TestClockWrap(t *testing.T) {
	sw := New(ModeMomentary)
	const nearMax = ^uint32(0) - 9 // ten ticks before the counter wraps

	runSteps(t, sw, []step{
		{true, nearMax - 100, SinglePress},
		{true, nearMax, SingleHold}, // hold timer starts ten ticks before the wrap
		{true, 5, SingleHold},       // 15ms later
		{true, 480, SingleHold},     // 490ms held
		{true, 491, LongPress},      // 501ms held
	})
}
