package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-scheduling/internal/events"
)

// BookingInput is what a patient submits when claiming a slot.
type BookingInput struct {
	SlotID         uuid.UUID
	ChiefComplaint string
	Symptoms       *string
}

// BookingDecision is the outcome of resolving a booking request. Appointment
// is set only on confirmation.
type BookingDecision struct {
	Request     BookingRequest `json:"request"`
	Slot        CalendarSlot   `json:"slot"`
	Appointment *Appointment   `json:"appointment,omitempty"`
}

// CreateBookingRequest claims an available slot for the calling patient. The
// slot's status moves to booked in the same transaction that stores the
// request, so of several concurrent callers exactly one succeeds.
func (s *Service) CreateBookingRequest(ctx context.Context, caller Caller, in BookingInput) (*BookingRequest, error) {
	if err := caller.requirePatient(); err != nil {
		return nil, err
	}

	complaint := strings.TrimSpace(in.ChiefComplaint)
	if complaint == "" {
		return nil, fmt.Errorf("%w: chief complaint is required", ErrInvalidInput)
	}

	slot, err := s.repo.GetSlotByID(ctx, in.SlotID)
	if err != nil {
		return nil, wrapInfra("load slot", err)
	}
	if slot.Status != SlotAvailable {
		return nil, ErrSlotUnavailable
	}

	var created *BookingRequest
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		_, err := tx.TransitionSlot(ctx, SlotTransition{
			SlotID:    slot.ID,
			From:      SlotAvailable,
			To:        SlotBooked,
			Version:   slot.Version,
			PatientID: idPtr(caller.ID),
		})
		if errors.Is(err, ErrStaleState) {
			return ErrSlotUnavailable
		}
		if err != nil {
			return wrapInfra("claim slot", err)
		}

		created, err = tx.InsertBookingRequest(ctx, BookingRequest{
			ID:             uuid.New(),
			SlotID:         slot.ID,
			DoctorID:       slot.DoctorID,
			PatientID:      caller.ID,
			Status:         RequestPending,
			ChiefComplaint: complaint,
			Symptoms:       in.Symptoms,
		})
		if err != nil {
			return wrapInfra("insert booking request", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapInfra("create booking request", err)
	}

	s.logger.Info().
		Str("request_id", created.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("doctor_id", slot.DoctorID.String()).
		Msg("slot booked")

	ev := events.New(events.SlotBooked, slot.DoctorID)
	ev.SlotID = idPtr(slot.ID)
	ev.RequestID = idPtr(created.ID)
	ev.PatientID = idPtr(caller.ID)
	ev.Payload = map[string]any{
		"date":       slot.Date.Format("2006-01-02"),
		"start_time": slot.StartTime.String(),
	}
	s.emit(ctx, ev)

	return created, nil
}

// GetPendingRequests lists the clinician's booking requests awaiting a decision.
func (s *Service) GetPendingRequests(ctx context.Context, caller Caller, doctorID uuid.UUID) ([]BookingRequest, error) {
	if err := caller.RequireClinician(doctorID); err != nil {
		return nil, err
	}

	reqs, err := s.repo.ListBookingRequestsByDoctor(ctx, doctorID, RequestPending)
	if err != nil {
		return nil, wrapInfra("list pending requests", err)
	}
	return reqs, nil
}

// GetMyBookingRequests lists every request the calling patient has made.
func (s *Service) GetMyBookingRequests(ctx context.Context, caller Caller) ([]BookingRequest, error) {
	if err := caller.requirePatient(); err != nil {
		return nil, err
	}

	reqs, err := s.repo.ListBookingRequestsByPatient(ctx, caller.ID)
	if err != nil {
		return nil, wrapInfra("list booking requests", err)
	}
	return reqs, nil
}

// ConfirmBookingRequest accepts a pending request. The request, the slot and
// the new appointment change together or not at all.
func (s *Service) ConfirmBookingRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (*BookingDecision, error) {
	req, err := s.loadRequestForClinician(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	var decision BookingDecision
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		apptID := uuid.New()
		resolved, err := tx.ResolveBookingRequest(ctx, RequestResolution{
			RequestID:     req.ID,
			To:            RequestConfirmed,
			ResolvedAt:    s.now().UTC(),
			AppointmentID: &apptID,
		})
		if errors.Is(err, ErrStaleState) {
			return ErrAlreadyProcessed
		}
		if err != nil {
			return wrapInfra("resolve booking request", err)
		}

		slot, err := tx.TransitionSlot(ctx, SlotTransition{
			SlotID:    req.SlotID,
			From:      SlotBooked,
			To:        SlotConfirmed,
			PatientID: idPtr(req.PatientID),
		})
		if errors.Is(err, ErrStaleState) {
			return fmt.Errorf("%w: slot is no longer booked", ErrInvalidState)
		}
		if err != nil {
			return wrapInfra("confirm slot", err)
		}

		appt, err := tx.InsertAppointment(ctx, Appointment{
			ID:               apptID,
			BookingRequestID: req.ID,
			DoctorID:         req.DoctorID,
			PatientID:        req.PatientID,
			SlotID:           slot.ID,
			ScheduledTime:    slot.StartsAt(s.loc),
			Status:           AppointmentScheduled,
		})
		if err != nil {
			return wrapInfra("insert appointment", err)
		}

		decision = BookingDecision{Request: *resolved, Slot: *slot, Appointment: appt}
		return nil
	})
	if err != nil {
		return nil, wrapInfra("confirm booking request", err)
	}

	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("appointment_id", decision.Appointment.ID.String()).
		Msg("booking request confirmed")

	ev := s.requestEvent(events.RequestConfirmed, decision.Request)
	ev.AppointmentID = idPtr(decision.Appointment.ID)
	ev.Payload = map[string]any{"scheduled_time": decision.Appointment.ScheduledTime}
	s.emit(ctx, ev)

	return &decision, nil
}

// RejectBookingRequest declines a pending request and returns its slot to
// the available pool.
func (s *Service) RejectBookingRequest(ctx context.Context, caller Caller, requestID uuid.UUID, reason string) (*BookingDecision, error) {
	req, err := s.loadRequestForClinician(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	var reasonPtr *string
	if r := strings.TrimSpace(reason); r != "" {
		reasonPtr = &r
	}

	decision, err := s.release(ctx, req, RequestRejected, reasonPtr)
	if err != nil {
		return nil, err
	}

	ev := s.requestEvent(events.RequestRejected, decision.Request)
	if reasonPtr != nil {
		ev.Payload = map[string]any{"reason": *reasonPtr}
	}
	s.emit(ctx, ev)

	return decision, nil
}

// CancelBookingRequest withdraws the calling patient's own pending request.
func (s *Service) CancelBookingRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (*BookingDecision, error) {
	if err := caller.requirePatient(); err != nil {
		return nil, err
	}

	req, err := s.repo.GetBookingRequestByID(ctx, requestID)
	if err != nil {
		return nil, wrapInfra("load booking request", err)
	}
	if req.PatientID != caller.ID {
		return nil, ErrForbidden
	}
	if req.Status != RequestPending {
		return nil, ErrAlreadyProcessed
	}

	decision, err := s.release(ctx, req, RequestCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.requestEvent(events.RequestCancelled, decision.Request))
	return decision, nil
}

// release resolves a pending request to a non-confirming terminal status and
// frees its slot in one transaction.
func (s *Service) release(ctx context.Context, req *BookingRequest, to RequestStatus, reason *string) (*BookingDecision, error) {
	var decision BookingDecision
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		resolved, err := tx.ResolveBookingRequest(ctx, RequestResolution{
			RequestID:  req.ID,
			To:         to,
			ResolvedAt: s.now().UTC(),
			Reason:     reason,
		})
		if errors.Is(err, ErrStaleState) {
			return ErrAlreadyProcessed
		}
		if err != nil {
			return wrapInfra("resolve booking request", err)
		}

		slot, err := tx.TransitionSlot(ctx, SlotTransition{
			SlotID: req.SlotID,
			From:   SlotBooked,
			To:     SlotAvailable,
		})
		if errors.Is(err, ErrStaleState) {
			return fmt.Errorf("%w: slot is no longer booked", ErrInvalidState)
		}
		if err != nil {
			return wrapInfra("release slot", err)
		}

		decision = BookingDecision{Request: *resolved, Slot: *slot}
		return nil
	})
	if err != nil {
		return nil, wrapInfra("release booking request", err)
	}

	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("slot_id", req.SlotID.String()).
		Str("status", string(to)).
		Msg("booking request released")

	return &decision, nil
}

// loadRequestForClinician applies the role check before the lookup and the
// ownership and state checks after it.
func (s *Service) loadRequestForClinician(ctx context.Context, caller Caller, requestID uuid.UUID) (*BookingRequest, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}
	if caller.Role != RoleClinician {
		return nil, ErrForbidden
	}

	req, err := s.repo.GetBookingRequestByID(ctx, requestID)
	if err != nil {
		return nil, wrapInfra("load booking request", err)
	}
	if req.DoctorID != caller.ID {
		return nil, ErrForbidden
	}
	if req.Status != RequestPending {
		return nil, ErrAlreadyProcessed
	}
	return req, nil
}

func (s *Service) requestEvent(eventType string, req BookingRequest) events.Event {
	ev := events.New(eventType, req.DoctorID)
	ev.RequestID = idPtr(req.ID)
	ev.SlotID = idPtr(req.SlotID)
	ev.PatientID = idPtr(req.PatientID)
	return ev
}
