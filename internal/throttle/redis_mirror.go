package throttle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMirrorPrefix = "yourarch:throttle"

// RedisMirror stores throttle state in Redis so workers sharing an egress IP
// back off together.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror connects to addr. ttl bounds how long a stale flag survives a
// crashed worker; zero disables expiry.
func NewRedisMirror(addr, password, prefix string, ttl time.Duration) (*RedisMirror, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("throttle mirror redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultMirrorPrefix
	}
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (m *RedisMirror) flagKey() string  { return m.prefix + ":throttling" }
func (m *RedisMirror) retryKey() string { return m.prefix + ":retry" }

// Publish writes s.
func (m *RedisMirror) Publish(ctx context.Context, s State) error {
	flag := "0"
	if s.Throttling {
		flag = "1"
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.flagKey(), flag, m.ttl)
	pipe.Set(ctx, m.retryKey(), s.RetryCount, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish throttle state: %w", err)
	}
	return nil
}

// Load returns the shared state; ok is false when nothing was published.
func (m *RedisMirror) Load(ctx context.Context) (State, bool, error) {
	vals, err := m.client.MGet(ctx, m.flagKey(), m.retryKey()).Result()
	if err != nil {
		return State{}, false, fmt.Errorf("load throttle state: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return State{}, false, nil
	}
	s := State{Throttling: vals[0] == "1"}
	if raw, ok := vals[1].(string); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			s.RetryCount = n
		}
	}
	return s, true, nil
}

// Clear drops the throttling flag but keeps the retry count.
func (m *RedisMirror) Clear(ctx context.Context) error {
	if err := m.client.Set(ctx, m.flagKey(), "0", m.ttl).Err(); err != nil {
		return fmt.Errorf("clear throttle flag: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
