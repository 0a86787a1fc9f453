package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterFailureThreshold(t *testing.T) {
	b := NewBreaker("database", 3, 2, time.Minute)
	require.Equal(t, StateClosed, b.CurrentState())

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	require.Equal(t, StateClosed, b.CurrentState())

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.CurrentState())
	require.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("database", 2, 1, time.Minute)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	require.Equal(t, StateClosed, b.CurrentState())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker("database", 1, 2, 10*time.Millisecond)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.CurrentState())
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.CurrentState())
}

func TestBreaker_ReclosesAfterSuccessThreshold(t *testing.T) {
	b := NewBreaker("database", 1, 2, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, StateHalfOpen, b.CurrentState())

	require.True(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, StateClosed, b.CurrentState())
}

func TestBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	b := NewBreaker("database", 1, 2, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.CurrentState())
	require.False(t, b.Allow())
}
