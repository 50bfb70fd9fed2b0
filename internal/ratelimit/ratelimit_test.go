package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_AbsentWhenNonPositiveRPS(t *testing.T) {
	l := New(0, 10)
	require.NoError(t, l.Wait(context.Background()))
	st := l.Status()
	require.Zero(t, st.TotalConsumed)
}

func TestLimiter_WaitConsumesTokens(t *testing.T) {
	l := New(1000, 1000)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	require.EqualValues(t, 5, l.Status().TotalConsumed)
}

func TestLimiter_WaitRespectsCancellation(t *testing.T) {
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background())) // drains the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_Record429DrainsBucket(t *testing.T) {
	l := New(1000, 1)
	l.Record429(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx))

	st := l.Status()
	require.False(t, st.Last429Time.IsZero())
}

func TestLimiter_WaitAppliesJitterThatVaries(t *testing.T) {
	l := New(1000, 1000) // fast enough that token acquisition is near-instant
	ctx := context.Background()

	seen := make(map[time.Duration]struct{})
	var prev time.Duration
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx))
		total := l.Status().TotalWaited
		seen[total-prev] = struct{}{}
		prev = total
	}
	require.Greater(t, len(seen), 1, "expected jittered wait durations to vary across calls")
}

func TestLimiter_JitterSpreadScalesWithRPS(t *testing.T) {
	fast := New(1000, 1)
	slow := New(10, 1)
	require.Less(t, fast.jitterSpread(), slow.jitterSpread())
}

func TestNilLimiter_IsSafe(t *testing.T) {
	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
	require.NotPanics(t, func() { l.Record429(time.Second) })
	require.Zero(t, l.Status())
}
