package logic

import "time"

// epochLead places the millisecond epoch before the detector's start time,
// so the first sample is never inside the chatter window of time zero.
const epochLead = time.Second

// MaxChatterMs is the widest chatter window a Detector accepts. Anything
// wider would reach back past the epoch and filter the first sample.
const MaxChatterMs = uint32(epochLead/time.Millisecond) - 1

// Detector drives a Switch from timestamped samples and reports
// classification changes as events.
type Detector struct {
	sw            *Switch
	epoch         time.Time
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector for a switch in the given mode.
// The startTime is used for the millisecond clock and for heartbeat uptime.
func NewDetector(mode Mode, th Thresholds, startTime time.Time) *Detector {
	sw := New(mode)
	sw.SetThresholds(th)
	return &Detector{
		sw:            sw,
		epoch:         startTime.Add(-epochLead),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process feeds one sample to the switch and returns an event if the
// classification changed. Filtered samples and "stay" transitions return nil.
func (d *Detector) Process(input Input) *Event {
	prev := d.sw.Classification()
	next := d.sw.Signal(input.High, d.millis(input.Time))

	if next == Filtered {
		d.eventCounts.Filtered++
		return nil
	}
	if next == prev {
		return nil
	}

	switch next {
	case SinglePress:
		d.eventCounts.Single++
	case DoublePress:
		d.eventCounts.Double++
	case LongPress:
		d.eventCounts.Long++
	case ToggleOn:
		d.eventCounts.ToggleOn++
	case ToggleOff:
		d.eventCounts.ToggleOff++
	}

	return &Event{
		Timestamp: input.Time,
		From:      prev,
		To:        next,
	}
}

// millis converts t to milliseconds since the detector's epoch.
// Times before the epoch clamp to zero.
func (d *Detector) millis(t time.Time) uint32 {
	since := t.Sub(d.epoch)
	if since < 0 {
		return 0
	}
	return uint32(since / time.Millisecond)
}

// ApplyThresholds replaces the switch's timing windows. In-flight timers are
// not re-evaluated; the new values apply from the next sample.
func (d *Detector) ApplyThresholds(th Thresholds) {
	d.sw.SetThresholds(th)
}

// Thresholds returns the switch's current timing windows.
func (d *Detector) Thresholds() Thresholds {
	return d.sw.Thresholds()
}

// Mode returns the switch's mode.
func (d *Detector) Mode() Mode {
	return d.sw.Mode()
}

// CurrentClassification returns the switch's current classification.
func (d *Detector) CurrentClassification() Classification {
	return d.sw.Classification()
}

// EventCountsSnapshot returns a copy of the gesture counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
