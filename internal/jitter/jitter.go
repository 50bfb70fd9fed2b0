// Package jitter centralizes the "sleep for an interval with randomized
// jitter" math used both for the fetcher pool's inter-request pause and
// for retry backoff delays, instead of duplicating rand calls at each
// call site.
package jitter

import (
	"context"
	"math/rand"
	"time"
)

// Sleep waits for base plus a random amount in [0, spread), or until ctx is
// cancelled, whichever comes first. spread <= 0 disables jitter.
func Sleep(ctx context.Context, base, spread time.Duration) error {
	d := base
	if spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff computes an exponential backoff delay for the given retry
// attempt (0-indexed): base * 2^attempt, plus up to 1s of jitter, capped at
// cap. This is the same shape the pipeline's fetch-retry loop and the
// reference site adapters both use.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = 30 * time.Second
	}
	d := base * time.Duration(uint64(1)<<uint(minInt(attempt, 20)))
	j := time.Duration(rand.Int63n(int64(time.Second)))
	if d > cap {
		return cap + j
	}
	return d + j
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
