package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/faults"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

// Service executes the billing operations against active subscriptions.
// Numeric and date computation lives in pricing.go; this type owns the
// validate -> mutate -> persist -> record pipeline.
type Service struct {
	subs     store.SubscriptionStore
	recorder *history.Recorder
	exec     *resilience.Executor
	sink     metrics.Sink
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(subs store.SubscriptionStore, recorder *history.Recorder, exec *resilience.Executor, sink metrics.Sink, log *zap.SugaredLogger) *Service {
	return &Service{subs: subs, recorder: recorder, exec: exec, sink: sink, log: log, now: time.Now}
}

func (s *Service) fetch(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, faults.NotFound("Subscription not found: %s", subscriptionID)
		}
		return nil, faults.PersistenceFailure(err, "failed to load subscription")
	}
	return sub, nil
}

func (s *Service) commit(ctx context.Context, sub *models.Subscription, record *models.SubscriptionHistory) error {
	return s.exec.Run(ctx, resilience.DependencyDatabase, func(ctx context.Context) error {
		return s.subs.SaveWithHistory(ctx, sub, record)
	})
}

func (s *Service) finish(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(faults.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.sink.Count(op, outcome)
}

// ProcessBilling charges one billing cycle: validates the subscription is
// Active, stamps the last-billed date, rolls the next-billing date forward
// and records the payment transaction id in the audit ledger. Invoked once
// per subscription per cycle by an external scheduler.
func (s *Service) ProcessBilling(ctx context.Context, subscriptionID, paymentTransactionID string) (sub *models.Subscription, err error) {
	defer s.sink.Timer("billing.process")()
	defer func() { s.finish("billing.process", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive:
		// billable
	case types.SubscriptionStatusPending:
		return nil, faults.InvalidStateTransition("Cannot bill pending subscription")
	case types.SubscriptionStatusTrial:
		return nil, faults.InvalidStateTransition("Cannot bill trial subscription")
	case types.SubscriptionStatusSuspended:
		return nil, faults.InvalidStateTransition("Cannot bill suspended subscription")
	case types.SubscriptionStatusCancelled:
		return nil, faults.InvalidStateTransition("Cannot bill cancelled subscription")
	case types.SubscriptionStatusExpired:
		return nil, faults.InvalidStateTransition("Cannot bill expired subscription")
	default:
		return nil, faults.InvalidStateTransition("Cannot bill subscription in status %s", sub.Status)
	}

	amount, aerr := Amount(sub.Tier, sub.BillingCycle)
	if aerr != nil {
		return nil, faults.ValidationFailure("no price for %s/%s", sub.Tier, sub.BillingCycle)
	}

	billedAt := s.now()
	next := NextBillingDate(sub.BillingCycle, billedAt)
	sub.BillingAmount = amount
	sub.LastBilledDate = &billedAt
	sub.NextBillingDate = &next
	sub.FailedBillingAttempts = 0

	record := s.recorder.NewRecord(sub, models.HistoryActionBilled, sub.Tier, sub.Tier,
		fmt.Sprintf("Billed %s %s", amount.StringFixed(2), sub.Currency), types.InitiatorSystem,
		map[string]any{"payment_transaction_id": paymentTransactionID})
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionBilled, map[string]string{
		"payment_transaction_id": paymentTransactionID,
		"amount":                 amount.StringFixed(2),
		"currency":               sub.Currency,
	}))

	logctx.FromCtx(ctx, s.log).Infow("subscription billed",
		"subscription_id", sub.ID, "amount", amount.StringFixed(2), "next_billing_date", next)
	return sub, nil
}

// UpdateBillingCycle moves an Active or Trial subscription onto a new
// recurrence cycle, recomputing amount and next-billing date.
func (s *Service) UpdateBillingCycle(ctx context.Context, subscriptionID string, newCycle types.BillingCycle) (sub *models.Subscription, err error) {
	defer func() { s.finish("billing.update_cycle", err) }()

	if !newCycle.Valid() {
		return nil, faults.ValidationFailure("Unknown billing cycle: %s", newCycle)
	}

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrial:
		// changeable
	default:
		return nil, faults.InvalidStateTransition("Cannot change billing cycle in status %s", sub.Status)
	}
	if sub.BillingCycle == newCycle {
		return nil, faults.ValidationFailure("Already on billing cycle: %s", newCycle)
	}

	oldCycle := sub.BillingCycle
	amount, aerr := Amount(sub.Tier, newCycle)
	if aerr != nil {
		return nil, faults.ValidationFailure("no price for %s/%s", sub.Tier, newCycle)
	}

	sub.BillingCycle = newCycle
	sub.BillingAmount = amount
	next := NextBillingDate(newCycle, sub.BillingAnchor())
	sub.NextBillingDate = &next

	record := s.recorder.NewRecord(sub, models.HistoryActionBillingCycleChanged, sub.Tier, sub.Tier,
		fmt.Sprintf("Billing cycle changed from %s to %s", oldCycle, newCycle), types.InitiatorUser, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventBillingCycleChanged, map[string]string{
		"old_cycle": string(oldCycle),
		"new_cycle": string(newCycle),
	}))
	return sub, nil
}

// RecordBillingFailure bumps the failed-attempt counter after a charge
// attempt bounced. Status is untouched; whether to suspend is the billing
// scheduler's decision.
func (s *Service) RecordBillingFailure(ctx context.Context, subscriptionID, reason string) (sub *models.Subscription, err error) {
	defer func() { s.finish("billing.record_failure", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.FailedBillingAttempts++

	record := s.recorder.NewRecord(sub, models.HistoryActionBillingFailed, sub.Tier, sub.Tier,
		reason, types.InitiatorSystem,
		map[string]any{"failed_attempts": sub.FailedBillingAttempts})
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListDueForBilling returns Active auto-renewing subscriptions whose
// next-billing date falls on or before asOf, for the external scheduler.
func (s *Service) ListDueForBilling(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	subs, err := s.subs.FindDueForBilling(ctx, asOf)
	if err != nil {
		return nil, faults.PersistenceFailure(err, "failed to list due subscriptions")
	}
	return subs, nil
}
