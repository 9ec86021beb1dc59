// Package ratelimit paces requests to the video platform.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the caller may issue one request.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLocalLimiter allows perMinute requests per minute with a burst of one.
// Non-positive values disable pacing and return nil.
func NewLocalLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

type chain []Limiter

func (c chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Chain combines limiters; every one must admit the request. Nil entries are
// skipped and nil is returned when nothing remains.
func Chain(limiters ...Limiter) Limiter {
	var out chain
	for _, l := range limiters {
		if l == nil || isNilLimiter(l) {
			continue
		}
		out = append(out, l)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func isNilLimiter(l Limiter) bool {
	switch v := l.(type) {
	case *rate.Limiter:
		return v == nil
	case *FixedWindowLimiter:
		return v == nil
	}
	return false
}
