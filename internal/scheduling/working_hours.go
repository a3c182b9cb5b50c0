package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// SetWorkingHours stores the rule for (doctor, weekday), replacing any rule
// already held for that weekday. Existing slots are left alone; only later
// generation runs see the change.
func (s *Service) SetWorkingHours(ctx context.Context, caller Caller, rule WorkingHoursRule) (*WorkingHoursRule, error) {
	if err := caller.RequireClinician(rule.DoctorID); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpsertWorkingHours(ctx, rule)
	if err != nil {
		return nil, wrapInfra("save working hours", err)
	}

	s.logger.Info().
		Str("doctor_id", rule.DoctorID.String()).
		Int("day_of_week", rule.DayOfWeek).
		Str("start", rule.StartTime.String()).
		Str("end", rule.EndTime.String()).
		Msg("working hours set")

	return saved, nil
}

func (s *Service) GetWorkingHours(ctx context.Context, caller Caller, doctorID uuid.UUID) ([]WorkingHoursRule, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	rules, err := s.repo.ListWorkingHours(ctx, doctorID)
	if err != nil {
		return nil, wrapInfra("list working hours", err)
	}
	return rules, nil
}
