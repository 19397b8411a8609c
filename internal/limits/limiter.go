package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("export limit exceeded")

// ExportLimits bounds how aggressively a single user can drive the export
// pipeline. Zero values disable the corresponding check.
type ExportLimits struct {
	PerMinute   int
	MaxParallel int
}

// ExportLimiter tracks per-user export pressure in redis so the limits hold
// across replicas.
type ExportLimiter struct {
	client *redis.Client
}

func NewExportLimiter(client *redis.Client) *ExportLimiter {
	return &ExportLimiter{client: client}
}

// Acquire admits one export for the user or returns ErrLimitExceeded. A
// successful acquire with MaxParallel set must be paired with Release.
func (l *ExportLimiter) Acquire(ctx context.Context, userID string, cfg ExportLimits) error {
	if l == nil || l.client == nil {
		return nil
	}

	if cfg.PerMinute > 0 {
		if err := l.countCheck(ctx, fmt.Sprintf("exports:rpm:%s", userID), time.Minute, cfg.PerMinute); err != nil {
			return err
		}
	}
	if cfg.MaxParallel > 0 {
		if err := l.semaphoreAcquire(ctx, fmt.Sprintf("exports:sem:%s", userID), cfg.MaxParallel); err != nil {
			return err
		}
	}

	return nil
}

// Release returns the parallel slot taken by Acquire.
func (l *ExportLimiter) Release(ctx context.Context, userID string, cfg ExportLimits) {
	if l == nil || l.client == nil {
		return
	}
	if cfg.MaxParallel > 0 {
		l.client.Decr(ctx, fmt.Sprintf("exports:sem:%s", userID))
	}
}

func (l *ExportLimiter) countCheck(ctx context.Context, key string, ttl time.Duration, limit int) error {
	now := time.Now().UTC().Unix() / int64(ttl.Seconds())
	redisKey := fmt.Sprintf("%s:%d", key, now)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, ttl)
	}
	if int(cnt) > limit {
		return ErrLimitExceeded
	}
	return nil
}

func (l *ExportLimiter) semaphoreAcquire(ctx context.Context, key string, max int) error {
	// TTL guards against leaked slots when a replica dies mid-export.
	ttl := 10 * time.Minute
	cnt, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, key, ttl)
	}
	if int(cnt) > max {
		l.client.Decr(ctx, key)
		return ErrLimitExceeded
	}
	return nil
}
