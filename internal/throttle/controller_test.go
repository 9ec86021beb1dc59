package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type recordedSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
	return nil
}

func newTestController(opts ...Option) (*Controller, *recordedSleep) {
	rec := &recordedSleep{}
	c := New(opts...)
	c.sleep = rec.sleep
	return c, rec
}

func TestControllerStartsWithRetryCountOne(t *testing.T) {
	c := New()
	if s := c.State(); s.Throttling || s.RetryCount != 1 {
		t.Fatalf("state = %+v, want {false 1}", s)
	}
	if got := c.Backoff(); got != 5*time.Second {
		t.Fatalf("backoff = %v, want 5s", got)
	}
}

func TestWaitSleepsRetryCountTimesUnit(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController()

	if got := c.Flag(ctx); got != 2 {
		t.Fatalf("retry count after flag = %d, want 2", got)
	}
	if !c.Throttling() {
		t.Fatalf("expected throttling after flag")
	}

	waited, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited != 10*time.Second {
		t.Fatalf("waited = %v, want 10s", waited)
	}
	if c.Throttling() {
		t.Fatalf("flag should clear after backoff")
	}
	if len(rec.calls) != 1 || rec.calls[0] != 10*time.Second {
		t.Fatalf("sleep calls = %v", rec.calls)
	}

	// Without a new 429 the next cycle does not sleep.
	if waited, _ := c.Wait(ctx); waited != 0 {
		t.Fatalf("waited = %v, want 0", waited)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("unexpected extra sleep: %v", rec.calls)
	}
}

func TestResetClearsRetryCount(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(WithUnit(time.Second))
	c.Flag(ctx)
	c.Flag(ctx)
	c.Reset(ctx)
	if s := c.State(); s.RetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", s.RetryCount)
	}
	c.Flag(ctx)
	waited, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited != time.Second {
		t.Fatalf("waited = %v, want 1s", waited)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("sleep calls = %v", rec.calls)
	}
}

func TestWaitInterruptedKeepsFlag(t *testing.T) {
	c := New(WithUnit(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	c.Flag(ctx)
	cancel()

	if _, err := c.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !c.Throttling() {
		t.Fatalf("flag must survive an interrupted backoff")
	}
}

func TestRedisMirrorSharesThrottling(t *testing.T) {
	redis := miniredis.RunT(t)
	ctx := context.Background()

	newMirror := func() *RedisMirror {
		m, err := NewRedisMirror(redis.Addr(), "", "test:throttle", time.Minute)
		if err != nil {
			t.Fatalf("new mirror: %v", err)
		}
		t.Cleanup(func() { _ = m.Close() })
		return m
	}

	a, _ := newTestController(WithMirror(newMirror()))
	b, rec := newTestController(WithMirror(newMirror()))

	a.Flag(ctx)
	a.Flag(ctx)

	waited, err := b.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited != 15*time.Second {
		t.Fatalf("waited = %v, want 15s", waited)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("sleep calls = %v", rec.calls)
	}
	if got, _ := redis.Get("test:throttle:throttling"); got != "0" {
		t.Fatalf("shared flag = %q, want cleared", got)
	}
}

func TestRedisMirrorFailureKeepsLocalState(t *testing.T) {
	redis := miniredis.RunT(t)
	m, err := NewRedisMirror(redis.Addr(), "", "test:throttle", 0)
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}
	defer m.Close()
	redis.Close()

	c, rec := newTestController(WithMirror(m))
	ctx := context.Background()
	c.Flag(ctx)
	waited, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited != 10*time.Second || len(rec.calls) != 1 {
		t.Fatalf("waited = %v, calls = %v", waited, rec.calls)
	}
}

func TestNewRedisMirrorRequiresAddr(t *testing.T) {
	if m, err := NewRedisMirror(" ", "", "", 0); err == nil || m != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}
