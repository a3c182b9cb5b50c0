// Package events carries scheduling state changes to external notifiers.
// Delivery and formatting belong to the subscribers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SlotBooked          = "slot.booked"
	SlotBlocked         = "slot.blocked"
	SlotUnblocked       = "slot.unblocked"
	RequestConfirmed    = "request.confirmed"
	RequestRejected     = "request.rejected"
	RequestCancelled    = "request.cancelled"
	GenerationCompleted = "generation.completed"
)

type Event struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	DoctorID      uuid.UUID      `json:"doctor_id"`
	PatientID     *uuid.UUID     `json:"patient_id,omitempty"`
	SlotID        *uuid.UUID     `json:"slot_id,omitempty"`
	RequestID     *uuid.UUID     `json:"request_id,omitempty"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType string, doctorID uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		DoctorID:   doctorID,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
