package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleClinician || r == RolePatient
}

// Caller is the identity resolved by the session layer. The scheduling core
// never verifies credentials itself.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func (c Caller) authenticated() error {
	if c.ID == uuid.Nil || !c.Role.Valid() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireClinician passes only for the clinician identified by doctorID.
func (c Caller) RequireClinician(doctorID uuid.UUID) error {
	if err := c.authenticated(); err != nil {
		return err
	}
	if c.Role != RoleClinician || c.ID != doctorID {
		return ErrForbidden
	}
	return nil
}

func (c Caller) requirePatient() error {
	if err := c.authenticated(); err != nil {
		return err
	}
	if c.Role != RolePatient {
		return ErrForbidden
	}
	return nil
}

func (c Caller) isClinician(doctorID uuid.UUID) bool {
	return c.Role == RoleClinician && c.ID == doctorID
}
