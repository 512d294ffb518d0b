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
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Running       bool          `json:"running"`
	Phase         string        `json:"phase"`
	RemainingMs   int64         `json:"remaining_ms"`
	Cycle         int           `json:"cycle"`
	Left          DirectionJSON `json:"left"`
	Right         DirectionJSON `json:"right"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// DirectionJSON reports one direction's intensity and indicator.
type DirectionJSON struct {
	Intensity string `json:"intensity"`
	Blink     string `json:"blink"`
	Indicator bool   `json:"indicator"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Phases      int `json:"phases"`
	Cycles      int `json:"cycles"`
	Intensity   int `json:"intensity_changes"`
	EdgesOK     int `json:"edges_accepted"`
	EdgesDenied int `json:"edges_rejected"`
	Commands    int `json:"commands"`
	Unknown     int `json:"unknown_commands"`
	Dropped     int `json:"dropped_bytes"`
	PinErrors   int `json:"pin_errors"`
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
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Scale       int    `json:"scale"`
	Broker      string `json:"broker"`
	Serial      string `json:"serial"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := snap.Phase.String()
	if !snap.Running {
		phase = "STARTING"
	}
	return StatusInner{
		Running:     snap.Running,
		Phase:       phase,
		RemainingMs: snap.Remaining.Milliseconds(),
		Cycle:       snap.Cycle,
		Left: DirectionJSON{
			Intensity: snap.Left.String(),
			Blink:     snap.LeftRate().String(),
			Indicator: snap.LeftOn,
		},
		Right: DirectionJSON{
			Intensity: snap.Right.String(),
			Blink:     snap.RightRate().String(),
			Indicator: snap.RightOn,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Phases:      snap.Counts.Phases,
			Cycles:      snap.Counts.Cycles,
			Intensity:   snap.Counts.Intensity,
			EdgesOK:     snap.Counts.EdgesOK,
			EdgesDenied: snap.Counts.EdgesDenied,
			Commands:    snap.Counts.Commands,
			Unknown:     snap.Counts.Unknown,
			Dropped:     snap.Counts.Dropped,
			PinErrors:   snap.Counts.PinErrors,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Scale:       snap.Config.Scale,
			Broker:      snap.Config.Broker,
			Serial:      snap.Config.Serial,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
