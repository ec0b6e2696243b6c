package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string         `json:"event,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Name           string         `json:"name"`
	Mode           string         `json:"mode"`
	Classification string         `json:"classification"`
	LastEvent      *EventJSON     `json:"last_event,omitempty"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	StartTime      string         `json:"start_time"`
	Timestamp      string         `json:"timestamp"`
	MQTT           MQTTStatus     `json:"mqtt"`
	Thresholds     ThresholdsJSON `json:"thresholds"`
	Counts         CountsJSON     `json:"event_counts"`
	Network        *NetworkJSON   `json:"network,omitempty"`
	Config         ConfigJSON     `json:"config"`
}

// EventJSON is the JSON representation of the last gesture event.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ThresholdsJSON is the JSON representation of the timing windows.
type ThresholdsJSON struct {
	LongPressMs   uint32 `json:"long_press_ms"`
	DoublePressMs uint32 `json:"double_press_ms"`
	ChatterMs     uint32 `json:"chatter_ms"`
}

// CountsJSON is the JSON representation of gesture counts.
type CountsJSON struct {
	Single    int `json:"single"`
	Double    int `json:"double"`
	Long      int `json:"long"`
	ToggleOn  int `json:"toggle_on"`
	ToggleOff int `json:"toggle_off"`
	Filtered  int `json:"filtered"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pin         int    `json:"pin"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	c := string(snap.Classification)
	if c == "" {
		c = "UNKNOWN"
	}

	inner := StatusInner{
		Name:           snap.Config.Name,
		Mode:           snap.Config.Mode,
		Classification: c,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Thresholds: ThresholdsJSON{
			LongPressMs:   snap.Thresholds.LongPress,
			DoublePressMs: snap.Thresholds.DoublePress,
			ChatterMs:     snap.Thresholds.Chatter,
		},
		Counts: CountsJSON{
			Single:    snap.Counts.Single,
			Double:    snap.Counts.Double,
			Long:      snap.Counts.Long,
			ToggleOn:  snap.Counts.ToggleOn,
			ToggleOff: snap.Counts.ToggleOff,
			Filtered:  snap.Counts.Filtered,
		},
		Config: ConfigJSON{
			Pin:         snap.Config.Pin,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.LastEvent != nil {
		inner.LastEvent = &EventJSON{
			Timestamp: snap.LastEvent.Timestamp.UTC().Format(time.RFC3339Nano),
			From:      string(snap.LastEvent.From),
			To:        string(snap.LastEvent.To),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
