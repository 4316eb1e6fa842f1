package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cafeteira/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Heating       string       `json:"heating"`
	Scheduled     string       `json:"scheduled"`
	Temperature   *int         `json:"temperature,omitempty"`
	Humidity      *int         `json:"humidity,omitempty"`
	StatusText    string       `json:"status_text"`
	Phase         string       `json:"phase"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counters.
type CountsJSON struct {
	ButtonPresses   int64 `json:"button_presses"`
	ButtonDiscarded int64 `json:"button_discarded"`
	Commands        int64 `json:"commands"`
	CommandsIgnored int64 `json:"commands_ignored"`
	Renders         int64 `json:"renders"`
	RendersSkipped  int64 `json:"renders_skipped"`
	RendersFailed   int64 `json:"renders_failed"`
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
	DebounceMs       int64  `json:"debounce_ms"`
	TelemetryMs      int64  `json:"telemetry_ms"`
	DisplayTimeoutMs int64  `json:"display_timeout_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	TopicPrefix      string `json:"topic_prefix"`
	HTTPPort         string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	dev := snap.Device
	inner := StatusInner{
		Heating:       string(logic.StateOf(dev.Heating)),
		Scheduled:     string(logic.StateOf(dev.Scheduled)),
		StatusText:    dev.Status,
		Phase:         snap.Phase,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ButtonPresses:   snap.Counts.ButtonPresses,
			ButtonDiscarded: snap.Counts.ButtonDiscarded,
			Commands:        snap.Counts.Commands,
			CommandsIgnored: snap.Counts.CommandsIgnored,
			Renders:         snap.Counts.Renders,
			RendersSkipped:  snap.Counts.RendersSkipped,
			RendersFailed:   snap.Counts.RendersFailed,
		},
		Config: ConfigJSON{
			DebounceMs:       snap.Config.DebounceMs,
			TelemetryMs:      snap.Config.TelemetryMs,
			DisplayTimeoutMs: snap.Config.DisplayTimeoutMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			TopicPrefix:      snap.Config.TopicPrefix,
			HTTPPort:         snap.Config.HTTPPort,
		},
	}
	if dev.HasReading {
		t, h := dev.Reading.Temperature, dev.Reading.Humidity
		inner.Temperature = &t
		inner.Humidity = &h
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
