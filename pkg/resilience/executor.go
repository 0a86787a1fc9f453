package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/faults"
	"github.com/fatflowers/membership/pkg/logctx"
)

// Dependency names used by the engine. Breakers are shared per name across
// all request workers.
const (
	DependencyDatabase = "database"
	DependencyEventBus = "event-bus"
)

// Settings tunes breaker trip behavior and the bounded retry.
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Cooldown:         30 * time.Second,
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         2 * time.Second,
	}
}

// Executor wraps persistence and event-publish calls with a shared
// per-dependency circuit breaker and a bounded exponential-backoff retry.
// Business-rule failures pass through untouched: they are not retried and
// do not count against the breaker.
type Executor struct {
	settings Settings
	log      *zap.SugaredLogger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewExecutor(settings Settings, log *zap.SugaredLogger) *Executor {
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	if settings.InitialDelay <= 0 {
		settings.InitialDelay = 100 * time.Millisecond
	}
	if settings.MaxDelay <= 0 {
		settings.MaxDelay = 2 * time.Second
	}
	return &Executor{
		settings: settings,
		log:      log,
		breakers: make(map[string]*Breaker),
	}
}

func (e *Executor) breaker(dependency string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[dependency]
	if !ok {
		b = NewBreaker(dependency, e.settings.FailureThreshold, e.settings.SuccessThreshold, e.settings.Cooldown)
		e.breakers[dependency] = b
	}
	return b
}

// BreakerState exposes the current state of a dependency's breaker.
func (e *Executor) BreakerState(dependency string) State {
	return e.breaker(dependency).CurrentState()
}

// Run executes op against the named dependency. Transient failures are
// retried up to the configured bound; exhaustion surfaces as
// PersistenceFailure and an open breaker as DependencyUnavailable.
// Panics inside op are recovered and converted to PersistenceFailure.
func (e *Executor) Run(ctx context.Context, dependency string, op func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logctx.FromCtx(ctx, e.log).Errorw("recovered panic in resilience executor",
				"dependency", dependency, "panic", r)
			err = faults.PersistenceFailure(fmt.Errorf("panic: %v", r), "unexpected fault calling %s", dependency)
		}
	}()

	b := e.breaker(dependency)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.settings.InitialDelay
	bo.MaxInterval = e.settings.MaxDelay

	var lastErr error
	attempt := func() error {
		if !b.Allow() {
			return backoff.Permanent(errBreakerOpen)
		}
		opErr := op(ctx)
		if opErr == nil {
			b.RecordSuccess()
			return nil
		}
		if faults.IsBusiness(opErr) {
			// rule violations are outcomes, not infrastructure faults
			return backoff.Permanent(opErr)
		}
		b.RecordFailure()
		lastErr = opErr
		logctx.FromCtx(ctx, e.log).Warnw("dependency call failed",
			"dependency", dependency, "err", opErr)
		return opErr
	}

	runErr := backoff.Retry(attempt, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(e.settings.MaxRetries)))
	if runErr == nil {
		return nil
	}
	if errors.Is(runErr, errBreakerOpen) {
		return faults.DependencyUnavailable(lastErr, "%s is unavailable", dependency)
	}
	if faults.IsBusiness(runErr) {
		return runErr
	}
	return faults.PersistenceFailure(runErr, "%s call failed after retries", dependency)
}

var errBreakerOpen = fmt.Errorf("circuit breaker open")
