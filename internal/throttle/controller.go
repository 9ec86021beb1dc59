// Package throttle holds the global backoff state shared by every item
// processor of a worker.
package throttle

import (
	"context"
	"sync"
	"time"

	"yourarch/internal/util"
)

// DefaultUnit is the backoff step multiplied by the retry count.
const DefaultUnit = 5 * time.Second

// Mirror shares throttle state between worker processes. Errors are logged
// by the controller and never change local state.
type Mirror interface {
	Publish(ctx context.Context, s State) error
	Load(ctx context.Context) (State, bool, error)
	Clear(ctx context.Context) error
}

// State is a snapshot of the controller.
type State struct {
	Throttling bool `json:"throttling"`
	RetryCount int  `json:"retryCount"`
}

// Controller tracks whether the platform is rate limiting us and how long
// the next drain cycle should back off.
type Controller struct {
	mu         sync.Mutex
	throttling bool
	retryCount int
	unit       time.Duration
	mirror     Mirror
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option customises a Controller.
type Option func(*Controller)

// WithUnit overrides DefaultUnit.
func WithUnit(unit time.Duration) Option {
	return func(c *Controller) {
		if unit > 0 {
			c.unit = unit
		}
	}
}

// WithMirror shares state through m.
func WithMirror(m Mirror) Option {
	return func(c *Controller) {
		c.mirror = m
	}
}

// New returns a controller with retryCount = 1.
func New(opts ...Option) *Controller {
	c := &Controller{
		retryCount: 1,
		unit:       DefaultUnit,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Throttling reports whether a 429 was observed since the last backoff.
func (c *Controller) Throttling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throttling
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Throttling: c.throttling, RetryCount: c.retryCount}
}

// Backoff is the pause the next drain cycle will take: retryCount * unit.
func (c *Controller) Backoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.retryCount) * c.unit
}

// Flag records a throttling failure and returns the new retry count.
func (c *Controller) Flag(ctx context.Context) int {
	c.mu.Lock()
	c.throttling = true
	c.retryCount++
	s := State{Throttling: true, RetryCount: c.retryCount}
	c.mu.Unlock()

	util.LoggerFromContext(ctx).Warn("upstream throttling", "retry_count", s.RetryCount)
	c.publish(ctx, s)
	return s.RetryCount
}

// Reset records a successful extraction.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	changed := c.retryCount != 0
	c.retryCount = 0
	s := State{Throttling: c.throttling, RetryCount: 0}
	c.mu.Unlock()

	if changed {
		c.publish(ctx, s)
	}
}

// Wait runs at the top of a drain cycle. When throttling it sleeps for
// Backoff(), clears the flag and returns the time slept. A cancelled ctx
// interrupts the sleep and leaves the flag set.
func (c *Controller) Wait(ctx context.Context) (time.Duration, error) {
	c.adopt(ctx)

	c.mu.Lock()
	if !c.throttling {
		c.mu.Unlock()
		return 0, nil
	}
	d := time.Duration(c.retryCount) * c.unit
	c.mu.Unlock()

	util.LoggerFromContext(ctx).Info("throttled, backing off", "backoff", d.String())
	if err := c.sleep(ctx, d); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.throttling = false
	c.mu.Unlock()
	if c.mirror != nil {
		if err := c.mirror.Clear(ctx); err != nil {
			util.LoggerFromContext(ctx).Warn("throttle mirror clear failed", "err", err)
		}
	}
	return d, nil
}

// adopt pulls a throttling signal raised by another process.
func (c *Controller) adopt(ctx context.Context) {
	if c.mirror == nil {
		return
	}
	remote, ok, err := c.mirror.Load(ctx)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("throttle mirror load failed", "err", err)
		return
	}
	if !ok || !remote.Throttling {
		return
	}
	c.mu.Lock()
	c.throttling = true
	if remote.RetryCount > c.retryCount {
		c.retryCount = remote.RetryCount
	}
	c.mu.Unlock()
}

func (c *Controller) publish(ctx context.Context, s State) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Publish(ctx, s); err != nil {
		util.LoggerFromContext(ctx).Warn("throttle mirror publish failed", "err", err)
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
