package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Price         *string      `json:"price"`
	Outlet        string       `json:"outlet"`
	Indicator     string       `json:"indicator"`
	Actuations    int          `json:"actuations"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Fetch         FetchJSON    `json:"fetch"`
	Clock         ClockJSON    `json:"clock"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Hardware      HardwareJSON `json:"hardware"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FetchJSON reports the last price fetch.
type FetchJSON struct {
	LastAttempt         string `json:"last_attempt,omitempty"`
	Error               string `json:"error,omitempty"`
	ScheduleDay         string `json:"schedule_day,omitempty"`
	Entries             int    `json:"entries"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// ClockJSON reports the applied clock correction.
type ClockJSON struct {
	OffsetMs int64  `json:"offset_ms"`
	SyncedAt string `json:"synced_at,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// HardwareJSON reports which devices are real GPIO lines.
type HardwareJSON struct {
	Button bool `json:"button"`
	Outlet bool `json:"outlet"`
	LED    bool `json:"led"`
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
	Threshold      string `json:"threshold"`
	Area           string `json:"area"`
	Currency       string `json:"currency"`
	Timezone       string `json:"timezone"`
	ButtonPollMs   int64  `json:"button_poll_ms"`
	ActuatorPollMs int64  `json:"actuator_poll_ms"`
	MinSleepMs     int64  `json:"min_sleep_ms"`
	MaxSleepMs     int64  `json:"max_sleep_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

// OnOff renders an outlet state.
func OnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// PriceString returns the formatted price of s, or nil when unknown.
func PriceString(s logic.Situation) *string {
	p, ok := s.Price()
	if !ok {
		return nil
	}
	str := logic.FormatPrice(p, ok)
	return &str
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	outlet, indicator := "UNKNOWN", "UNKNOWN"
	if snap.Applied {
		outlet = OnOff(snap.Actuation.Outlet)
		indicator = snap.Actuation.Color.Name
	}

	return StatusInner{
		Mode:          snap.Situation.Mode().String(),
		Price:         PriceString(snap.Situation),
		Outlet:        outlet,
		Indicator:     indicator,
		Actuations:    snap.Actuations,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Fetch: FetchJSON{
			LastAttempt:         formatTime(snap.Fetch.At),
			Error:               snap.Fetch.Err,
			ScheduleDay:         snap.Fetch.Day,
			Entries:             snap.Fetch.Entries,
			ConsecutiveFailures: snap.Fetch.ConsecutiveFailures,
		},
		Clock: ClockJSON{
			OffsetMs: snap.ClockOffset.Milliseconds(),
			SyncedAt: formatTime(snap.ClockSyncedAt),
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Hardware: HardwareJSON{
			Button: snap.Hardware.Button,
			Outlet: snap.Hardware.Outlet,
			LED:    snap.Hardware.LED,
		},
		Config: ConfigJSON{
			Threshold:      snap.Config.Threshold,
			Area:           snap.Config.Area,
			Currency:       snap.Config.Currency,
			Timezone:       snap.Config.Timezone,
			ButtonPollMs:   snap.Config.ButtonPollMs,
			ActuatorPollMs: snap.Config.ActuatorPollMs,
			MinSleepMs:     snap.Config.MinSleepMs,
			MaxSleepMs:     snap.Config.MaxSleepMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
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
