package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	taskStatusKeyPrefix = "plagiarism_report_status:"
	generationKeyPrefix = "plagiarism_generation_lock:"
)

var (
	ErrLockHeld = errors.New("lock is held by another owner")
	ErrLockLost = errors.New("lock is no longer held")
)

// RedisClient is the command subset the repositories use. *redis.Client
// satisfies it.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

func NewRedisClient(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("addr", addr).Int("db", db).Msg("Connected to Redis")
	return client, nil
}

// TaskStatusRepository keeps task snapshots readable by every replica.
type TaskStatusRepository interface {
	Save(ctx context.Context, snapshot *models.TaskSnapshot) error
	Get(ctx context.Context, taskID string) (*models.TaskSnapshot, error)
}

type taskStatusRepository struct {
	client RedisClient
	ttl    time.Duration
	logger zerolog.Logger
}

func NewTaskStatusRepository(client RedisClient, ttl time.Duration, logger zerolog.Logger) TaskStatusRepository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &taskStatusRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *taskStatusRepository) Save(ctx context.Context, snapshot *models.TaskSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal task snapshot: %w", err)
	}

	key := taskStatusKeyPrefix + snapshot.TaskID
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save task status: %w", err)
	}

	r.logger.Trace().
		Str("task_id", snapshot.TaskID).
		Str("state", snapshot.State).
		Float64("progress", snapshot.Progress).
		Msg("Task status saved")

	return nil
}

func (r *taskStatusRepository) Get(ctx context.Context, taskID string) (*models.TaskSnapshot, error) {
	data, err := r.client.Get(ctx, taskStatusKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	var snapshot models.TaskSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task status: %w", err)
	}

	return &snapshot, nil
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript resets the expiry only if the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is one held RedisLocker key.
type Lease interface {
	// Renew restarts the TTL or returns ErrLockLost once the key expired
	// or changed owner.
	Renew(ctx context.Context) error
	Release()
}

// RedisLocker is a best-effort distributed mutex: SET NX PX plus
// token-checked renewal and release.
type RedisLocker struct {
	client RedisClient
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisLocker(client RedisClient, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the lock for key or returns ErrLockHeld.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	token := uuid.New().String()
	redisKey := generationKeyPrefix + key

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &redisLease{locker: l, key: redisKey, token: token}, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (l *redisLease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.locker.client, []string{l.key}, l.token, l.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (l *redisLease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := unlockScript.Run(ctx, l.locker.client, []string{l.key}, l.token).Err(); err != nil {
		l.locker.logger.Error().Err(err).Str("key", l.key).Msg("Failed to release lock")
	}
}
