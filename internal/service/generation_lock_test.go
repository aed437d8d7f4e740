package service

import (
	"context"
	"errors"
	"testing"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
)

func TestLocalGenerationLock(t *testing.T) {
	lock := NewLocalGenerationLock()
	ctx := context.Background()

	lease, err := lock.TryLock(ctx, "hw1")
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if err := lease.Renew(ctx); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}

	if _, err := lock.TryLock(ctx, "hw1"); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("second TryLock() error = %v, want ErrGenerationInProgress", err)
	}

	other, err := lock.TryLock(ctx, "hw2")
	if err != nil {
		t.Fatalf("TryLock(hw2) error = %v", err)
	}
	other.Release()

	lease.Release()
	lease.Release()

	again, err := lock.TryLock(ctx, "hw1")
	if err != nil {
		t.Fatalf("TryLock() after release error = %v", err)
	}
	again.Release()
}

type fakeLocker struct {
	err      error
	renewErr error
	held     map[string]bool
	renewed  int
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (repository.Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held[key] {
		return nil, repository.ErrLockHeld
	}
	f.held[key] = true
	return &fakeRemoteLease{locker: f, key: key}, nil
}

type fakeRemoteLease struct {
	locker *fakeLocker
	key    string
}

func (l *fakeRemoteLease) Renew(context.Context) error {
	l.locker.renewed++
	return l.locker.renewErr
}

func (l *fakeRemoteLease) Release() {
	l.locker.held[l.key] = false
	l.locker.released++
}

func TestRedisGenerationLock(t *testing.T) {
	remote := &fakeLocker{held: map[string]bool{}}
	lock := &redisGenerationLock{local: NewLocalGenerationLock(), locker: remote}
	ctx := context.Background()

	lease, err := lock.TryLock(ctx, "hw1")
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if _, err := lock.TryLock(ctx, "hw1"); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("second TryLock() error = %v, want ErrGenerationInProgress", err)
	}
	if err := lease.Renew(ctx); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if remote.renewed != 1 {
		t.Errorf("remote renewed %d times, want 1", remote.renewed)
	}

	lease.Release()
	lease.Release()
	if remote.released != 1 {
		t.Errorf("remote released %d times, want 1", remote.released)
	}

	// Held by another replica.
	remote.held["hw1"] = true
	if _, err := lock.TryLock(ctx, "hw1"); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("TryLock() with remote holder error = %v, want ErrGenerationInProgress", err)
	}

	// The local lock must not leak after a remote refusal.
	remote.held["hw1"] = false
	lease, err = lock.TryLock(ctx, "hw1")
	if err != nil {
		t.Fatalf("TryLock() after remote release error = %v", err)
	}
	lease.Release()
}

func TestRedisGenerationLockRenewErrors(t *testing.T) {
	tests := []struct {
		name     string
		renewErr error
		wantLost bool
	}{
		{"expired", repository.ErrLockLost, true},
		{"store down", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeLocker{renewErr: tt.renewErr, held: map[string]bool{}}
			lock := &redisGenerationLock{local: NewLocalGenerationLock(), locker: remote}

			lease, err := lock.TryLock(context.Background(), "hw1")
			if err != nil {
				t.Fatalf("TryLock() error = %v", err)
			}
			defer lease.Release()

			err = lease.Renew(context.Background())
			if err == nil {
				t.Fatal("Renew() error = nil")
			}
			if got := errors.Is(err, ErrGenerationLockLost); got != tt.wantLost {
				t.Errorf("Renew() error = %v, lost = %v, want %v", err, got, tt.wantLost)
			}
		})
	}
}

func TestRedisGenerationLockStoreError(t *testing.T) {
	remote := &fakeLocker{err: errors.New("connection refused"), held: map[string]bool{}}
	lock := &redisGenerationLock{local: NewLocalGenerationLock(), locker: remote}

	_, err := lock.TryLock(context.Background(), "hw1")
	if err == nil || errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("TryLock() error = %v, want store error", err)
	}
}
