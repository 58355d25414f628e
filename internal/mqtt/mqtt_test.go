package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweeney/spot-outlet/internal/logic"
)

func testEvent(price string, mode logic.Mode) logic.Event {
	s := logic.NewSituation().WithMode(mode)
	if price != "" {
		s = s.WithPrice(decimal.RequireFromString(price))
	}
	return logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Situation: s,
		Actuation: logic.Decide(s, decimal.RequireFromString("0.61")),
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testEvent("0.615", logic.ModeAuto))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Outlet.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Outlet.Timestamp)
	}
	if parsed.Outlet.Mode != "AUTO" {
		t.Errorf("unexpected mode: %s", parsed.Outlet.Mode)
	}
	if parsed.Outlet.Price == nil || *parsed.Outlet.Price != "0.62" {
		t.Errorf("unexpected price: %v", parsed.Outlet.Price)
	}
	if parsed.Outlet.State != "OFF" {
		t.Errorf("unexpected state: %s", parsed.Outlet.State)
	}
	if parsed.Outlet.Indicator != "orange" {
		t.Errorf("unexpected indicator: %s", parsed.Outlet.Indicator)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	tests := []struct {
		name  string
		event logic.Event
		want  string
	}{
		{
			"cheap",
			testEvent("0.30", logic.ModeAuto),
			`{"outlet":{"timestamp":"2026-02-02T22:18:12Z","mode":"AUTO","price":"0.30","state":"ON","indicator":"green"}}`,
		},
		{
			"no price",
			testEvent("", logic.ModeAuto),
			`{"outlet":{"timestamp":"2026-02-02T22:18:12Z","mode":"AUTO","price":null,"state":"OFF","indicator":"off"}}`,
		},
		{
			"manual on",
			testEvent("3.10", logic.ModeManualOn),
			`{"outlet":{"timestamp":"2026-02-02T22:18:12Z","mode":"MANUAL_ON","price":"3.10","state":"ON","indicator":"turquoise"}}`,
		},
		{
			"manual off",
			testEvent("0.10", logic.ModeManualOff),
			`{"outlet":{"timestamp":"2026-02-02T22:18:12Z","mode":"MANUAL_OFF","price":"0.10","state":"OFF","indicator":"purple"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	ev := testEvent("1.00", logic.ModeAuto)
	ev.Timestamp = time.Date(2026, 2, 2, 23, 0, 0, 0, time.FixedZone("CET", 3600))

	payload, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Outlet.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Outlet.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "energy/outlet/spot/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "energy/outlet/spot/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := parsed["system"]["reason"]; exists {
		t.Error("RECONNECTED should not have reason field")
	}
}

func TestWillPayloadHasNoTimestamp(t *testing.T) {
	payload, err := willPayload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected will:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testEvent("0.30", logic.ModeAuto)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.EventsSnapshot()) != 1 || len(f.Payloads) != 1 {
		t.Errorf("expected 1 event, got %d", len(f.Events))
	}
	sys := f.SystemEventsSnapshot()
	if len(sys) != 1 || sys[0].Event != "STARTUP" || !sys[0].Retained {
		t.Errorf("unexpected system events: %+v", sys)
	}

	f.Reset()
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("expected Reset to clear events")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(testEvent("0.30", logic.ModeAuto)); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(testEvent("0.30", logic.ModeAuto)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if p.(ConnectionStatus).IsConnected() {
		t.Error("noop publisher is never connected")
	}
}
