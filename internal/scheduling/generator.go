package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/events"
	redisclient "github.com/hackgods/clinician-scheduling/internal/redis"
)

// maxQueryDays bounds a single slot listing.
const (
	maxQueryDays     = 366
	defaultQueryDays = 7
)

// GenerationSummary reports one scheduled pass over every clinician.
type GenerationSummary struct {
	Doctors   int `json:"doctors"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Generated int `json:"slots_generated"`
}

// GenerateSlots materializes slots for [today, today+days) from the
// clinician's working hours. Slots that already exist are counted as skipped
// and never modified, so repeated runs are safe.
func (s *Service) GenerateSlots(ctx context.Context, caller Caller, doctorID uuid.UUID, days int) (*SlotGenerationRun, error) {
	if err := caller.RequireClinician(doctorID); err != nil {
		return nil, err
	}
	return s.generateLocked(ctx, doctorID, days)
}

// RunScheduledGeneration is the system trigger used by the slot worker. It
// generates for every clinician with working hours and skips clinicians whose
// generation is already running elsewhere.
func (s *Service) RunScheduledGeneration(ctx context.Context, days int) (GenerationSummary, error) {
	var summary GenerationSummary
	if days < 1 || days > s.maxDays {
		return summary, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRange, s.maxDays)
	}

	doctors, err := s.repo.ListDoctorsWithWorkingHours(ctx)
	if err != nil {
		return summary, wrapInfra("list clinicians", err)
	}
	summary.Doctors = len(doctors)

	for _, doctorID := range doctors {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		run, err := s.generateLocked(ctx, doctorID, days)
		switch {
		case errors.Is(err, ErrGenerationInProgress):
			summary.Skipped++
			s.logger.Info().Str("doctor_id", doctorID.String()).Msg("generation already running, skipping")
		case err != nil:
			summary.Failed++
			s.logger.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("scheduled generation failed")
		default:
			summary.Succeeded++
			summary.Generated += run.SlotsGenerated
		}
	}
	return summary, nil
}

func (s *Service) generateLocked(ctx context.Context, doctorID uuid.UUID, days int) (*SlotGenerationRun, error) {
	if days < 1 || days > s.maxDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRange, s.maxDays)
	}

	var run *SlotGenerationRun
	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		var err error
		run, err = s.generate(lockCtx, doctorID, days)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrGenerationInProgress
	}
	if err != nil {
		return run, wrapInfra("generate slots", err)
	}
	return run, nil
}

func (s *Service) generate(ctx context.Context, doctorID uuid.UUID, days int) (*SlotGenerationRun, error) {
	start := civilDate(s.now(), s.loc)
	run := SlotGenerationRun{
		ID:         uuid.New(),
		DoctorID:   doctorID,
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, days),
	}

	rules, err := s.repo.ListWorkingHours(ctx, doctorID)
	if err != nil {
		return s.finishRun(ctx, run, err)
	}

	byDay := make(map[time.Weekday][]WorkingHoursRule, len(rules))
	for _, r := range rules {
		byDay[time.Weekday(r.DayOfWeek)] = append(byDay[time.Weekday(r.DayOfWeek)], r)
	}

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		for _, rule := range byDay[date.Weekday()] {
			for _, c := range rule.Candidates() {
				inserted, err := s.repo.InsertSlotIfAbsent(ctx, CalendarSlot{
					ID:        uuid.New(),
					DoctorID:  doctorID,
					Date:      date,
					StartTime: c[0],
					EndTime:   c[1],
					Status:    SlotAvailable,
				})
				if err != nil {
					return s.finishRun(ctx, run, err)
				}
				if inserted {
					run.SlotsGenerated++
				} else {
					run.SlotsSkipped++
				}
			}
		}
	}

	return s.finishRun(ctx, run, nil)
}

// finishRun writes the audit entry for a run. A failed run is still recorded
// with the counts reached before the failure.
func (s *Service) finishRun(ctx context.Context, run SlotGenerationRun, genErr error) (*SlotGenerationRun, error) {
	run.GeneratedAt = s.now().UTC()
	run.Status = RunSuccess
	if genErr != nil {
		msg := genErr.Error()
		run.Status = RunFailed
		run.Error = &msg
	}

	// the audit entry must land even when the caller's context is gone
	auditCtx := context.WithoutCancel(ctx)
	if err := s.repo.InsertGenerationRun(auditCtx, run); err != nil {
		s.logger.Error().Err(err).Str("doctor_id", run.DoctorID.String()).Msg("failed to record generation run")
		if genErr == nil {
			return &run, infra("record generation run", err)
		}
	}

	var logEvt *zerolog.Event
	if genErr != nil {
		logEvt = s.logger.Error().Err(genErr)
	} else {
		logEvt = s.logger.Info()
	}
	logEvt.Str("doctor_id", run.DoctorID.String()).
		Str("range_start", run.RangeStart.Format(time.DateOnly)).
		Str("range_end", run.RangeEnd.Format(time.DateOnly)).
		Int("generated", run.SlotsGenerated).
		Int("skipped", run.SlotsSkipped).
		Str("status", string(run.Status)).
		Msg("slot generation finished")

	if genErr != nil {
		return &run, infra("generate slots", genErr)
	}

	ev := events.New(events.GenerationCompleted, run.DoctorID)
	ev.Payload = map[string]any{
		"run_id":          run.ID.String(),
		"range_start":     run.RangeStart.Format(time.DateOnly),
		"range_end":       run.RangeEnd.Format(time.DateOnly),
		"slots_generated": run.SlotsGenerated,
		"slots_skipped":   run.SlotsSkipped,
	}
	s.emit(auditCtx, ev)

	return &run, nil
}

// GetDoctorSlots lists a clinician's slots between two dates, inclusive.
// Anyone but the owning clinician gets the public view.
func (s *Service) GetDoctorSlots(ctx context.Context, caller Caller, doctorID uuid.UUID, startDate, endDate time.Time, statuses []SlotStatus) ([]CalendarSlot, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown slot status %q", ErrInvalidInput, st)
		}
	}
	q, err := s.newSlotQuery(doctorID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	q.Statuses = statuses

	slots, err := s.repo.ListSlots(ctx, q)
	if err != nil {
		return nil, wrapInfra("list slots", err)
	}

	if !caller.isClinician(doctorID) {
		for i := range slots {
			slots[i] = slots[i].Public()
		}
	}
	return slots, nil
}

// newSlotQuery normalizes a date range. A zero start is today in the
// schedule location and a zero end is a week after the start.
func (s *Service) newSlotQuery(doctorID uuid.UUID, startDate, endDate time.Time) (SlotQuery, error) {
	start := civilDate(s.now(), s.loc)
	if !startDate.IsZero() {
		start = dateOnly(startDate)
	}
	end := start.AddDate(0, 0, defaultQueryDays)
	if !endDate.IsZero() {
		end = dateOnly(endDate)
	}
	if end.Before(start) {
		return SlotQuery{}, fmt.Errorf("%w: end date before start date", ErrInvalidRange)
	}
	if end.Sub(start) > maxQueryDays*24*time.Hour {
		return SlotQuery{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, maxQueryDays)
	}
	return SlotQuery{DoctorID: doctorID, StartDate: start, EndDate: end}, nil
}

// dateOnly keeps the calendar fields of t as given and drops the clock.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
