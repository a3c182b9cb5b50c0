package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotQuery selects slots for one clinician over an inclusive date range.
// An empty Statuses matches every status.
type SlotQuery struct {
	DoctorID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Statuses  []SlotStatus
}

// SlotTransition is a compare-and-swap on a slot's status. The update only
// applies when the stored status equals From (and Version, when non-zero).
// PatientID and BlockReason replace the stored values, nil clears them.
type SlotTransition struct {
	SlotID      uuid.UUID
	From        SlotStatus
	To          SlotStatus
	Version     int
	PatientID   *uuid.UUID
	BlockReason *string
}

// RequestResolution moves a pending booking request to a terminal status.
type RequestResolution struct {
	RequestID     uuid.UUID
	To            RequestStatus
	ResolvedAt    time.Time
	Reason        *string
	AppointmentID *uuid.UUID
}

// Repository contains all storage interactions needed by the service.
// Conditional updates return ErrStaleState when no row matched.
type Repository interface {
	// Working hours
	UpsertWorkingHours(ctx context.Context, rule WorkingHoursRule) (*WorkingHoursRule, error)
	ListWorkingHours(ctx context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error)
	ListDoctorsWithWorkingHours(ctx context.Context) ([]uuid.UUID, error)

	// Slots
	InsertSlotIfAbsent(ctx context.Context, slot CalendarSlot) (bool, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*CalendarSlot, error)
	ListSlots(ctx context.Context, q SlotQuery) ([]CalendarSlot, error)
	NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, from ClockTime) (*CalendarSlot, error)
	TransitionSlot(ctx context.Context, t SlotTransition) (*CalendarSlot, error)

	// Booking requests
	InsertBookingRequest(ctx context.Context, req BookingRequest) (*BookingRequest, error)
	GetBookingRequestByID(ctx context.Context, id uuid.UUID) (*BookingRequest, error)
	ListBookingRequestsByDoctor(ctx context.Context, doctorID uuid.UUID, status RequestStatus) ([]BookingRequest, error)
	ListBookingRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]BookingRequest, error)
	ResolveBookingRequest(ctx context.Context, r RequestResolution) (*BookingRequest, error)

	// Appointments
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Generation audit log
	InsertGenerationRun(ctx context.Context, run SlotGenerationRun) error
	ListGenerationRuns(ctx context.Context, doctorID uuid.UUID, limit int) ([]SlotGenerationRun, error)

	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}
