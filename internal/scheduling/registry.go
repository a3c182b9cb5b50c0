package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-scheduling/internal/events"
)

func (s *Service) GetAvailableSlots(ctx context.Context, caller Caller, doctorID uuid.UUID, startDate, endDate time.Time) ([]CalendarSlot, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}
	q, err := s.newSlotQuery(doctorID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	q.Statuses = []SlotStatus{SlotAvailable}

	slots, err := s.repo.ListSlots(ctx, q)
	if err != nil {
		return nil, wrapInfra("list available slots", err)
	}
	for i := range slots {
		slots[i] = slots[i].Public()
	}
	return slots, nil
}

// GetNextAvailableSlot returns the earliest available slot starting at or
// after the current wall-clock time, or nil when there is none.
func (s *Service) GetNextAvailableSlot(ctx context.Context, caller Caller, doctorID uuid.UUID) (*CalendarSlot, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	from := ceilMinute(s.now())
	slot, err := s.repo.NextAvailableSlot(ctx, doctorID, civilDate(from, s.loc), clockOf(from, s.loc))
	if errors.Is(err, ErrSlotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapInfra("next available slot", err)
	}

	public := slot.Public()
	return &public, nil
}

// BlockSlot takes an available slot out of circulation. Booked or confirmed
// slots cannot be blocked; the request has to be resolved first.
func (s *Service) BlockSlot(ctx context.Context, caller Caller, slotID uuid.UUID, reason string) (*CalendarSlot, error) {
	slot, err := s.loadOwnedSlot(ctx, caller, slotID)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: block reason is required", ErrInvalidInput)
	}
	if slot.Status != SlotAvailable {
		return nil, fmt.Errorf("%w: cannot block a %s slot", ErrInvalidState, slot.Status)
	}

	updated, err := s.repo.TransitionSlot(ctx, SlotTransition{
		SlotID:      slot.ID,
		From:        SlotAvailable,
		To:          SlotBlocked,
		Version:     slot.Version,
		BlockReason: &reason,
	})
	if errors.Is(err, ErrStaleState) {
		return nil, fmt.Errorf("%w: slot changed while blocking", ErrInvalidState)
	}
	if err != nil {
		return nil, wrapInfra("block slot", err)
	}

	ev := events.New(events.SlotBlocked, updated.DoctorID)
	ev.SlotID = idPtr(updated.ID)
	ev.Payload = map[string]any{"reason": reason}
	s.emit(ctx, ev)

	return updated, nil
}

func (s *Service) UnblockSlot(ctx context.Context, caller Caller, slotID uuid.UUID) (*CalendarSlot, error) {
	slot, err := s.loadOwnedSlot(ctx, caller, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotBlocked {
		return nil, fmt.Errorf("%w: slot is %s, not blocked", ErrInvalidState, slot.Status)
	}

	updated, err := s.repo.TransitionSlot(ctx, SlotTransition{
		SlotID:  slot.ID,
		From:    SlotBlocked,
		To:      SlotAvailable,
		Version: slot.Version,
	})
	if errors.Is(err, ErrStaleState) {
		return nil, fmt.Errorf("%w: slot changed while unblocking", ErrInvalidState)
	}
	if err != nil {
		return nil, wrapInfra("unblock slot", err)
	}

	ev := events.New(events.SlotUnblocked, updated.DoctorID)
	ev.SlotID = idPtr(updated.ID)
	s.emit(ctx, ev)

	return updated, nil
}

// loadOwnedSlot checks the role before touching storage so that a patient
// learns nothing about slot existence.
func (s *Service) loadOwnedSlot(ctx context.Context, caller Caller, slotID uuid.UUID) (*CalendarSlot, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}
	if caller.Role != RoleClinician {
		return nil, ErrForbidden
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, wrapInfra("load slot", err)
	}
	if slot.DoctorID != caller.ID {
		return nil, ErrForbidden
	}
	return slot, nil
}
