package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("test-secret", "clinician-scheduling")
	caller := scheduling.Caller{ID: uuid.New(), Role: scheduling.RoleClinician}

	tok, err := tokens.Issue(caller, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != caller {
		t.Errorf("Parse = %+v, want %+v", got, caller)
	}
}

func TestParse_Rejects(t *testing.T) {
	tokens := NewTokens("test-secret", "clinician-scheduling")
	caller := scheduling.Caller{ID: uuid.New(), Role: scheduling.RolePatient}

	expired, _ := tokens.Issue(caller, -time.Minute)
	foreign, _ := NewTokens("other-secret", "clinician-scheduling").Issue(caller, time.Hour)
	wrongIssuer, _ := NewTokens("test-secret", "someone-else").Issue(caller, time.Hour)

	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "clinician-scheduling",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "patient",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    "clinician-scheduling",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "patient",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: "clinician-scheduling"},
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"wrong issuer", wrongIssuer},
		{"unknown role", badRole},
		{"subject not uuid", badSubject},
		{"missing expiry", noExpiry},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssue_RequiresIdentity(t *testing.T) {
	tokens := NewTokens("test-secret", "")
	if _, err := tokens.Issue(scheduling.Caller{Role: scheduling.RolePatient}, time.Hour); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for nil id, got %v", err)
	}
	if _, err := tokens.Issue(scheduling.Caller{ID: uuid.New(), Role: "nurse"}, time.Hour); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}
