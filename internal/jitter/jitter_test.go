package jitter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSleep_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Second, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestSleep_NoJitterWhenSpreadZero(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond, 0))
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestBackoff_GrowsExponentiallyAndCaps(t *testing.T) {
	base := 10 * time.Millisecond
	cap := 100 * time.Millisecond

	d0 := Backoff(0, base, cap)
	require.GreaterOrEqual(t, d0, base)
	require.Less(t, d0, base+time.Second)

	dCapped := Backoff(10, base, cap)
	require.GreaterOrEqual(t, dCapped, cap)
	require.Less(t, dCapped, cap+time.Second)
}

func TestBackoff_DefaultsBaseAndCapWhenNonPositive(t *testing.T) {
	d := Backoff(0, 0, 0)
	require.GreaterOrEqual(t, d, time.Second)
}
