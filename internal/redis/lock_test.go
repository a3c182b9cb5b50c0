package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestLocalDoctorLocker_RejectsReentry(t *testing.T) {
	l := NewLocalDoctorLocker()
	doctor := uuid.New()

	err := l.WithDoctorLock(context.Background(), doctor, func(ctx context.Context) error {
		inner := l.WithDoctorLock(ctx, doctor, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Errorf("expected ErrLockNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalDoctorLocker_IndependentDoctors(t *testing.T) {
	l := NewLocalDoctorLocker()

	err := l.WithDoctorLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return l.WithDoctorLock(ctx, uuid.New(), func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalDoctorLocker_ReleasesAfterError(t *testing.T) {
	l := NewLocalDoctorLocker()
	doctor := uuid.New()
	boom := errors.New("boom")

	if err := l.WithDoctorLock(context.Background(), doctor, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if err := l.WithDoctorLock(context.Background(), doctor, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("lock not released: %v", err)
	}
}
