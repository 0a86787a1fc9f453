package usage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/faults"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

// Service enforces per-feature usage quotas keyed by subscription tier.
// Records are created lazily on first check or increment; the increment
// path rejects pre-emptively, so a counter can only sit above its limit
// after a tier downgrade.
type Service struct {
	usage store.UsageStore
	subs  store.SubscriptionStore
	exec  *resilience.Executor
	sink  metrics.Sink
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(usage store.UsageStore, subs store.SubscriptionStore, exec *resilience.Executor, sink metrics.Sink, log *zap.SugaredLogger) *Service {
	return &Service{usage: usage, subs: subs, exec: exec, sink: sink, log: log, now: time.Now}
}

// fetchOrCreate loads the usage record for (subscription, feature), lazily
// creating it from the subscription's current tier with a one-month period
// window.
func (s *Service) fetchOrCreate(ctx context.Context, subscriptionID string, feature types.Feature) (*models.UsageTracking, error) {
	row, err := s.usage.FindBySubscriptionAndFeature(ctx, subscriptionID, feature)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, faults.PersistenceFailure(err, "failed to load usage record")
	}

	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, faults.NotFound("Subscription not found: %s", subscriptionID)
		}
		return nil, faults.PersistenceFailure(err, "failed to load subscription")
	}

	start := s.now()
	row = &models.UsageTracking{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Feature:        feature,
		UsageCount:     0,
		UsageLimit:     QuotaFor(feature, sub.Tier),
		PeriodStart:    start,
		PeriodEnd:      start.AddDate(0, 1, 0),
	}
	if err := s.persist(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) persist(ctx context.Context, row *models.UsageTracking) error {
	return s.exec.Run(ctx, resilience.DependencyDatabase, func(ctx context.Context) error {
		return s.usage.Save(ctx, row)
	})
}

// CanUseFeature reports whether the feature has quota left: unlimited, or
// count still below the limit. A record left over-limit by a downgrade
// reports false here.
func (s *Service) CanUseFeature(ctx context.Context, subscriptionID string, feature types.Feature) (bool, error) {
	row, err := s.fetchOrCreate(ctx, subscriptionID, feature)
	if err != nil {
		return false, err
	}
	if row.Unlimited() {
		return true, nil
	}
	return row.UsageCount < row.UsageLimit, nil
}

// IncrementUsage consumes quota. The projected total is checked before any
// write, so the stored count never passes the limit through this path.
func (s *Service) IncrementUsage(ctx context.Context, subscriptionID string, feature types.Feature, amount int64) (row *models.UsageTracking, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(faults.KindOf(err))
		}
		s.sink.Count("usage.increment", outcome)
	}()

	if amount <= 0 {
		return nil, faults.ValidationFailure("usage amount must be positive")
	}

	row, err = s.fetchOrCreate(ctx, subscriptionID, feature)
	if err != nil {
		return nil, err
	}

	projected := row.UsageCount + amount
	if !row.Unlimited() && projected > row.UsageLimit {
		return nil, faults.LimitExceeded("Usage limit exceeded for %s: %d/%d", feature, row.UsageCount, row.UsageLimit)
	}

	usedAt := s.now()
	row.UsageCount = projected
	row.LastUsedDate = &usedAt
	if err = s.persist(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// ResetUsageForBillingPeriod zeroes every counter of the subscription and
// opens a fresh period window. Invoked at billing-cycle rollover by an
// external trigger; the only path that ever decreases a count.
func (s *Service) ResetUsageForBillingPeriod(ctx context.Context, subscriptionID string) error {
	rows, err := s.usage.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return faults.PersistenceFailure(err, "failed to load usage records")
	}
	if len(rows) == 0 {
		return nil
	}

	resetAt := s.now()
	for _, row := range rows {
		row.UsageCount = 0
		row.ResetDate = &resetAt
		row.PeriodStart = resetAt
		row.PeriodEnd = resetAt.AddDate(0, 1, 0)
		row.LimitExceeded = false
	}
	err = s.exec.Run(ctx, resilience.DependencyDatabase, func(ctx context.Context) error {
		return s.usage.SaveAll(ctx, rows)
	})
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("usage reset for billing period",
		"subscription_id", subscriptionID, "records", len(rows))
	return nil
}

// ApplyTierChange rewrites every record's limit to the new tier's quota.
// Counts are left untouched: a downgrade can leave a record over limit,
// which is flagged rather than auto-corrected.
func (s *Service) ApplyTierChange(ctx context.Context, subscriptionID string, newTier types.Tier) error {
	rows, err := s.usage.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return faults.PersistenceFailure(err, "failed to load usage records")
	}
	if len(rows) == 0 {
		return nil
	}

	changedAt := s.now()
	for _, row := range rows {
		row.UsageLimit = QuotaFor(row.Feature, newTier)
		overLimit := !row.Unlimited() && row.UsageCount > row.UsageLimit
		if overLimit && !row.LimitExceeded {
			row.ExceededCount++
			if row.FirstExceededAt == nil {
				row.FirstExceededAt = &changedAt
			}
		}
		row.LimitExceeded = overLimit
	}
	return s.exec.Run(ctx, resilience.DependencyDatabase, func(ctx context.Context) error {
		return s.usage.SaveAll(ctx, rows)
	})
}

// Records returns the usage rows of a subscription for the read API.
func (s *Service) Records(ctx context.Context, subscriptionID string) ([]*models.UsageTracking, error) {
	rows, err := s.usage.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, faults.PersistenceFailure(err, "failed to load usage records")
	}
	return rows, nil
}
