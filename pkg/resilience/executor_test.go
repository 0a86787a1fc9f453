package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/faults"
)

func testSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         50 * time.Millisecond,
		MaxRetries:       2,
		InitialDelay:     time.Millisecond,
		MaxDelay:         2 * time.Millisecond,
	}
}

func newTestExecutor() *Executor {
	return NewExecutor(testSettings(), zap.NewNop().Sugar())
}

func TestRun_Success(t *testing.T) {
	e := newTestExecutor()
	calls := 0
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRun_BusinessFailureNotRetried(t *testing.T) {
	e := newTestExecutor()
	calls := 0
	want := faults.AlreadyInState("Subscription is already active")
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		calls++
		return want
	})
	require.ErrorIs(t, err, want)
	require.Equal(t, faults.KindAlreadyInState, faults.KindOf(err))
	require.Equal(t, 1, calls)
	// rule violations do not feed the breaker
	require.Equal(t, StateClosed, e.BreakerState(DependencyDatabase))
}

func TestRun_TransientFailureRetriedThenSucceeds(t *testing.T) {
	e := newTestExecutor()
	calls := 0
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRun_ExhaustionSurfacesPersistenceFailure(t *testing.T) {
	e := newTestExecutor()
	calls := 0
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	require.Equal(t, faults.KindPersistenceFailure, faults.KindOf(err))
	// initial attempt plus MaxRetries
	require.Equal(t, 3, calls)
}

func TestRun_OpenBreakerShedsCalls(t *testing.T) {
	e := newTestExecutor()

	// trip the breaker: 3 calls x 3 attempts covers the failure threshold
	for i := 0; i < 3; i++ {
		_ = e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
			return errors.New("down")
		})
	}
	require.Equal(t, StateOpen, e.BreakerState(DependencyDatabase))

	calls := 0
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Equal(t, faults.KindDependencyUnavailable, faults.KindOf(err))
	require.Equal(t, 0, calls)
}

func TestRun_BreakersArePerDependency(t *testing.T) {
	e := newTestExecutor()
	for i := 0; i < 3; i++ {
		_ = e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
			return errors.New("down")
		})
	}
	require.Equal(t, StateOpen, e.BreakerState(DependencyDatabase))
	require.Equal(t, StateClosed, e.BreakerState(DependencyEventBus))

	err := e.Run(context.Background(), DependencyEventBus, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestRun_RecoversAfterCooldown(t *testing.T) {
	e := newTestExecutor()
	for i := 0; i < 3; i++ {
		_ = e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
			return errors.New("down")
		})
	}
	require.Equal(t, StateOpen, e.BreakerState(DependencyDatabase))

	time.Sleep(60 * time.Millisecond)
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StateClosed, e.BreakerState(DependencyDatabase))
}

func TestRun_PanicBecomesPersistenceFailure(t *testing.T) {
	e := newTestExecutor()
	err := e.Run(context.Background(), DependencyDatabase, func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	require.Equal(t, faults.KindPersistenceFailure, faults.KindOf(err))
}
