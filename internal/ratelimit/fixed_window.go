package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"yourarch/internal/util"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter caps outbound requests per window across every worker
// sharing the Redis instance.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	key    string

	redisClient *redis.Client
	now         func() time.Time
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, key string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "yourarch:ratelimit:platform"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		key:    key,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		now: time.Now,
	}, nil
}

// Allow takes a slot in the current window. Redis failures fail open: the
// platform's own 429 handling still protects us.
func (l *FixedWindowLimiter) Allow(ctx context.Context) bool {
	ok, err := l.take(ctx)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("rate limiter unavailable, allowing request", "err", err)
		return true
	}
	return ok
}

// Wait blocks until a slot is available or ctx is done.
func (l *FixedWindowLimiter) Wait(ctx context.Context) error {
	for {
		if l.Allow(ctx) {
			return nil
		}
		if err := sleep(ctx, l.untilNextWindow()); err != nil {
			return err
		}
	}
}

// Close releases the Redis connection.
func (l *FixedWindowLimiter) Close() error {
	return l.redisClient.Close()
}

func (l *FixedWindowLimiter) take(ctx context.Context) (bool, error) {
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true, nil
	}
	windowSlot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%d", l.key, windowSlot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false, err
	}
	return res <= int64(l.limit), nil
}

func (l *FixedWindowLimiter) untilNextWindow() time.Duration {
	windowMs := l.window.Milliseconds()
	elapsed := l.now().UTC().UnixMilli() % windowMs
	return time.Duration(windowMs-elapsed) * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
