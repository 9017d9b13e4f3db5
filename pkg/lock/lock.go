// Package lock implements the per-dataset advisory lock the orchestrator
// holds while rebuilding a dataset, backed by Redis (component K's
// concurrency guard — §5: one worker owns one dataset at a time).
//
// Grounded on DimaJoyti-go-coffee's pkg/cache.DistributedLock (SetNX
// acquire, token-matched release so a lock only ever clears its own
// holder), rewritten directly against go-redis/v9 instead of through that
// package's Cache interface.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DatasetLock is a single-holder advisory lock scoped to one dataset.
// Not safe for concurrent use by multiple goroutines sharing one value;
// each would-be holder should create its own DatasetLock.
type DatasetLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// New builds a lock for datasetID. ttl bounds how long a crashed holder's
// lock survives before another worker can reclaim the dataset.
func New(client *redis.Client, datasetID string, ttl time.Duration) *DatasetLock {
	return &DatasetLock{
		client: client,
		key:    fmt.Sprintf("aforo:lock:%s", datasetID),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock. A false, nil return means another
// worker currently holds it — not an error condition.
func (l *DatasetLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release clears the lock, but only if this DatasetLock still holds it —
// a lock whose TTL expired and was reacquired by another worker is left
// alone.
func (l *DatasetLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		l.token = ""
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if current == l.token {
		if err := l.client.Del(ctx, l.key).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
	}
	l.token = ""
	return nil
}

// Extend refreshes the TTL while this DatasetLock still holds it, for a
// rebuild running longer than the original ttl. Returns false if the lock
// was lost (expired and possibly reacquired elsewhere).
func (l *DatasetLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		l.token = ""
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if current != l.token {
		l.token = ""
		return false, nil
	}
	if err := l.client.Expire(ctx, l.key, ttl).Err(); err != nil {
		return false, fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	return true, nil
}
