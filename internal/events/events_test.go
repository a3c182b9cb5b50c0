package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestEvent_Encode(t *testing.T) {
	doctor := uuid.New()
	slot := uuid.New()
	ev := New(SlotBooked, doctor)
	ev.SlotID = &slot
	ev.Payload = map[string]any{"chief_complaint": "cough"}

	body, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != SlotBooked {
		t.Errorf("expected type %s, got %v", SlotBooked, decoded["type"])
	}
	if decoded["doctor_id"] != doctor.String() {
		t.Errorf("unexpected doctor_id %v", decoded["doctor_id"])
	}
	if decoded["slot_id"] != slot.String() {
		t.Errorf("unexpected slot_id %v", decoded["slot_id"])
	}
	if _, ok := decoded["request_id"]; ok {
		t.Error("request_id should be omitted when nil")
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	ev := New(RequestConfirmed, uuid.New())
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, RequestConfirmed) || !strings.Contains(out, ev.ID.String()) {
		t.Errorf("log line missing event fields: %s", out)
	}
}

func TestRedisPublisher_Channel(t *testing.T) {
	p := NewRedisPublisher(nil, "scheduling")
	if got := p.Channel(SlotBlocked); got != "scheduling.slot.blocked" {
		t.Errorf("unexpected channel %s", got)
	}
}
