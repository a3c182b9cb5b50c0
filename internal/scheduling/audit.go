package scheduling

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetGenerationHistory returns the clinician's most recent generation runs,
// newest first.
func (s *Service) GetGenerationHistory(ctx context.Context, caller Caller, doctorID uuid.UUID, limit int) ([]SlotGenerationRun, error) {
	if err := caller.RequireClinician(doctorID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	runs, err := s.repo.ListGenerationRuns(ctx, doctorID, limit)
	if err != nil {
		return nil, wrapInfra("list generation runs", err)
	}
	return runs, nil
}
