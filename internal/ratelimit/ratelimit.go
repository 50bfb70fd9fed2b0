// Package ratelimit provides a per-site token-bucket limiter for the
// fetcher pool, wrapping golang.org/x/time/rate with the status-reporting
// shape the rest of the pipeline expects from a rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-novel/novelcore/internal/jitter"
)

// waitJitterPct is the fraction of the limiter's interval (1/rps) added as
// random jitter after each token grant, to avoid every fetcher worker
// waking up on the exact same tick and thundering into the remote site.
const waitJitterPct = 0.03

// Status is a snapshot of the limiter's settings and counters, as returned
// by Limiter.Status.
type Status struct {
	RequestsPerSecond float64
	Burst             int
	TotalConsumed     int64
	TotalWaited       time.Duration
	Last429Time       time.Time
}

// Limiter is an advisory rate limiter: if constructed with RPS <= 0, Wait
// is a no-op and the limiter reports itself as absent. Every request the
// fetcher pool makes calls Wait before issuing its HTTP call.
type Limiter struct {
	mu sync.Mutex

	rps   float64
	burst int
	lim   *rate.Limiter

	totalConsumed int64
	totalWaited   time.Duration
	last429       time.Time
}

// New creates a limiter for the given requests-per-second and burst size.
// A non-positive rps disables limiting entirely (Wait always returns nil
// immediately) — this is the "absent" case in the component design.
func New(rps float64, burst int) *Limiter {
	l := &Limiter{rps: rps, burst: burst}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.burst = burst
		l.lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// Wait blocks until a token is available, ctx is cancelled, or the limiter
// is absent (rps <= 0). Once a token is granted it adds a small random
// jitter (a few percent of 1/rps) before returning, so concurrent workers
// released by the same tick don't all fire at once.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	if err := jitter.Sleep(ctx, 0, l.jitterSpread()); err != nil {
		return err
	}
	waited := time.Since(start)

	l.mu.Lock()
	l.totalConsumed++
	l.totalWaited += waited
	l.mu.Unlock()
	return nil
}

// jitterSpread returns waitJitterPct of the limiter's nominal interval
// (1/rps), the upper bound jitter.Sleep draws its random delay from.
func (l *Limiter) jitterSpread() time.Duration {
	if l.rps <= 0 {
		return 0
	}
	interval := time.Duration(float64(time.Second) / l.rps)
	return time.Duration(float64(interval) * waitJitterPct)
}

// Record429 reacts to a rate-limit response from the remote site, draining
// the bucket so subsequent requests back off for roughly retryAfter.
func (l *Limiter) Record429(retryAfter time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.last429 = time.Now()
	l.mu.Unlock()

	if l.lim == nil || retryAfter <= 0 {
		return
	}
	l.lim.SetLimit(rate.Limit(0))
	time.AfterFunc(retryAfter, func() {
		l.lim.SetLimit(rate.Limit(l.rps))
	})
}

// Status returns a snapshot of the limiter's counters.
func (l *Limiter) Status() Status {
	if l == nil {
		return Status{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		RequestsPerSecond: l.rps,
		Burst:             l.burst,
		TotalConsumed:     l.totalConsumed,
		TotalWaited:       l.totalWaited,
		Last429Time:       l.last429,
	}
}
