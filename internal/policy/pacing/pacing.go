// Package pacing spaces upstream requests with a randomized delay and an
// optional steady-rate token bucket.
package pacing

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/time/rate"
)

// Default delay bounds between requests.
const (
	DefaultMin = 1500 * time.Millisecond
	DefaultMax = 3500 * time.Millisecond
)

// Config holds pacing configuration.
type Config struct {
	Min time.Duration
	Max time.Duration
	// RequestsPerSecond caps the steady request rate. Zero disables the cap.
	RequestsPerSecond float64
	Burst             int
}

// Pauser blocks for a delay or until the context ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Pacer inserts a delay drawn uniformly from [Min, Max] after each request.
type Pacer struct {
	min     time.Duration
	max     time.Duration
	limiter *rate.Limiter
	pauser  Pauser
}

// New creates a Pacer. Negative bounds collapse to zero and Max is raised to
// Min when smaller.
func New(cfg Config) *Pacer {
	lo, hi := max(cfg.Min, 0), max(cfg.Max, 0)
	if hi < lo {
		hi = lo
	}
	p := &Pacer{min: lo, max: hi, pauser: timerPauser{}}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// WithPauser replaces the blocking primitive, mainly so tests do not sleep.
func (p *Pacer) WithPauser(pauser Pauser) *Pacer {
	p.pauser = pauser
	return p
}

// Acquire blocks until the rate limiter admits one request.
func (p *Pacer) Acquire(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Delay returns the next randomized delay.
func (p *Pacer) Delay() time.Duration {
	spread := p.max - p.min
	if spread <= 0 {
		return p.min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(spread)+1))
	if err != nil {
		return p.min + spread/2
	}
	return p.min + time.Duration(n.Int64())
}

// Wait pauses for the next randomized delay and returns it.
func (p *Pacer) Wait(ctx context.Context) time.Duration {
	d := p.Delay()
	p.pauser.Pause(ctx, d)
	return d
}
