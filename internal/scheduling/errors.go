package scheduling

import (
	"errors"
	"fmt"
)

// Domain errors. Callers compare with errors.Is; none of these are retried.
var (
	ErrInvalidRange         = errors.New("invalid range")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrSlotUnavailable      = errors.New("slot is not available")
	ErrInvalidState         = errors.New("operation not allowed in current state")
	ErrAlreadyProcessed     = errors.New("booking request already processed")
	ErrGenerationInProgress = errors.New("slot generation already running for this clinician")
)

// ErrInfrastructure marks storage and transport failures. These are distinct
// from the domain taxonomy and may be retried by the caller.
var ErrInfrastructure = errors.New("infrastructure failure")

// Repository-level conditions the service translates into domain errors.
var (
	ErrSlotNotFound        = fmt.Errorf("slot %w", ErrNotFound)
	ErrRequestNotFound     = fmt.Errorf("booking request %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrStaleState          = errors.New("conditional update matched no rows")
)

func infra(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}

// IsDomainError reports whether err belongs to the domain taxonomy.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidRange, ErrInvalidInput, ErrNotFound, ErrForbidden, ErrUnauthenticated,
		ErrSlotUnavailable, ErrInvalidState, ErrAlreadyProcessed, ErrGenerationInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
