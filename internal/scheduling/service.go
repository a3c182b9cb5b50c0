package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/events"
	redisclient "github.com/hackgods/clinician-scheduling/internal/redis"
)

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	publisher events.Publisher
	logger    zerolog.Logger
	loc       *time.Location
	maxDays   int
	now       func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, publisher events.Publisher, logger zerolog.Logger, cfg config.Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	maxDays := cfg.MaxGenerationDays
	if maxDays <= 0 {
		maxDays = 90
	}
	if locker == nil {
		locker = redisclient.NewLocalDoctorLocker()
	}

	return &Service{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		logger:    logger.With().Str("component", "scheduling").Logger(),
		loc:       loc,
		maxDays:   maxDays,
		now:       time.Now,
	}
}

// wrapInfra passes domain errors through untouched and marks everything
// else as an infrastructure failure.
func wrapInfra(op string, err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrInfrastructure) {
		return err
	}
	return infra(op, err)
}

// emit publishes after the state change is durable. A publish failure is
// logged and never fails the operation.
func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event", ev.Type).
			Str("doctor_id", ev.DoctorID.String()).
			Msg("failed to publish event")
	}
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

// GetAppointment is readable by the appointment's clinician and patient.
func (s *Service) GetAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, wrapInfra("load appointment", err)
	}

	switch {
	case caller.Role == RoleClinician && caller.ID == appt.DoctorID:
	case caller.Role == RolePatient && caller.ID == appt.PatientID:
	default:
		return nil, ErrForbidden
	}
	return appt, nil
}
