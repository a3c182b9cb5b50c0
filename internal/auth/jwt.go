// Package auth resolves bearer tokens to scheduling callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 access tokens. The subject carries the
// caller id and the role claim carries clinician or patient.
type Tokens struct {
	secret []byte
	issuer string
}

func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer}
}

func (t *Tokens) Issue(caller scheduling.Caller, ttl time.Duration) (string, error) {
	if caller.ID == uuid.Nil || !caller.Role.Valid() {
		return "", fmt.Errorf("%w: caller needs an id and a known role", ErrInvalidToken)
	}

	now := time.Now()
	claims := Claims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Parse(tokenStr string) (scheduling.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return scheduling.Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return scheduling.Caller{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return scheduling.Caller{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	role := scheduling.Role(claims.Role)
	if !role.Valid() {
		return scheduling.Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return scheduling.Caller{ID: id, Role: role}, nil
}
