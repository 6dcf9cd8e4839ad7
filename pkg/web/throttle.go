/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: throttle.go
Description: Request pacing and throttling. Exponential backoff for 403/429 responses,
jittered pacing between attempts and a context-aware sleep that tests can replace.
*/

package web

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsThrottled reports whether status signals rate limiting or WAF blocking
func IsThrottled(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

// Backoff tracks the wait applied after a throttling response.
// Each throttle doubles the next wait up to Max; any other response resets it.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at base
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{Base: base, Max: max, current: base}
}

// Current is the wait the next throttle will use
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Next returns the wait for this throttle and doubles the following one
func (b *Backoff) Next() time.Duration {
	wait := b.current
	b.current *= 2
	if b.current > b.Max {
		b.current = b.Max
	}
	return wait
}

// Reset returns to the base wait
func (b *Backoff) Reset() {
	b.current = b.Base
}

// Pacer computes jittered delays between attempts
type Pacer struct {
	Base   time.Duration
	Jitter float64
	rng    *rand.Rand
}

// NewPacer creates a pacer drawing jitter from rng
func NewPacer(base time.Duration, jitter float64, rng *rand.Rand) *Pacer {
	return &Pacer{Base: base, Jitter: jitter, rng: rng}
}

// Delay returns base ± base*jitter, sampled uniformly
func (p *Pacer) Delay() time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if p.Jitter <= 0 {
		return p.Base
	}
	spread := float64(p.Base) * p.Jitter
	d := time.Duration(float64(p.Base) + (p.rng.Float64()*2-1)*spread)
	if d < 0 {
		return 0
	}
	return d
}
