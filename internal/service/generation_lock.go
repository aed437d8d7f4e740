package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
)

// Lease is a held generation lock.
type Lease interface {
	// Renew restarts the lease's expiry. A lease that already expired
	// reports ErrGenerationLockLost.
	Renew(ctx context.Context) error
	// Release is idempotent.
	Release()
}

// GenerationLock serializes report generation per assignment.
type GenerationLock interface {
	// TryLock never waits: it either takes the lock or fails with
	// ErrGenerationInProgress.
	TryLock(ctx context.Context, assignmentID string) (Lease, error)
}

type localGenerationLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGenerationLock guards a single process.
func NewLocalGenerationLock() GenerationLock {
	return &localGenerationLock{held: make(map[string]struct{})}
}

func (l *localGenerationLock) TryLock(_ context.Context, assignmentID string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[assignmentID]; ok {
		return nil, ErrGenerationInProgress
	}
	l.held[assignmentID] = struct{}{}

	return &localLease{release: sync.OnceFunc(func() {
		l.mu.Lock()
		delete(l.held, assignmentID)
		l.mu.Unlock()
	})}, nil
}

// localLease never expires.
type localLease struct {
	release func()
}

func (l *localLease) Renew(context.Context) error { return nil }

func (l *localLease) Release() { l.release() }

type distributedLocker interface {
	Acquire(ctx context.Context, key string) (repository.Lease, error)
}

type redisGenerationLock struct {
	local  GenerationLock
	locker distributedLocker
}

// NewRedisGenerationLock guards every replica sharing the Redis instance. The
// in-process lock is taken first so local contention never reaches Redis.
func NewRedisGenerationLock(locker *repository.RedisLocker) GenerationLock {
	return &redisGenerationLock{
		local:  NewLocalGenerationLock(),
		locker: locker,
	}
}

func (l *redisGenerationLock) TryLock(ctx context.Context, assignmentID string) (Lease, error) {
	local, err := l.local.TryLock(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	remote, err := l.locker.Acquire(ctx, assignmentID)
	if err != nil {
		local.Release()
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, ErrGenerationInProgress
		}
		return nil, fmt.Errorf("failed to lock assignment %s: %w", assignmentID, err)
	}

	return &redisLease{
		assignmentID: assignmentID,
		remote:       remote,
		release: sync.OnceFunc(func() {
			remote.Release()
			local.Release()
		}),
	}, nil
}

type redisLease struct {
	assignmentID string
	remote       repository.Lease
	release      func()
}

func (l *redisLease) Renew(ctx context.Context) error {
	err := l.remote.Renew(ctx)
	if errors.Is(err, repository.ErrLockLost) {
		return fmt.Errorf("%w: assignment %s", ErrGenerationLockLost, l.assignmentID)
	}
	if err != nil {
		return fmt.Errorf("failed to renew lock for assignment %s: %w", l.assignmentID, err)
	}
	return nil
}

func (l *redisLease) Release() { l.release() }
