package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/app/service/billing"
	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/app/service/usage"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/faults"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

// Service is the subscription state machine. Every mutating operation runs
// the same pipeline: fetch, validate the current state exhaustively, mutate
// the record, persist mutation+history in one transaction through the
// resilience layer, then publish a best-effort domain event.
//
// Operations on the same subscription id are not serialized here; the
// store's concurrency control is the backstop for racing writers.
type Service struct {
	subs      store.SubscriptionStore
	usage     *usage.Service
	recorder  *history.Recorder
	exec      *resilience.Executor
	sink      metrics.Sink
	log       *zap.SugaredLogger
	trialDays int
	now       func() time.Time
}

func NewService(cfg *config.Config, subs store.SubscriptionStore, usageSvc *usage.Service, recorder *history.Recorder, exec *resilience.Executor, sink metrics.Sink, log *zap.SugaredLogger) *Service {
	return &Service{
		subs:      subs,
		usage:     usageSvc,
		recorder:  recorder,
		exec:      exec,
		sink:      sink,
		log:       log,
		trialDays: cfg.Billing.TrialDays,
		now:       time.Now,
	}
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

// CreateRequest carries the inputs for a new subscription.
type CreateRequest struct {
	UserID       string             `json:"user_id"`
	Tier         types.Tier         `json:"tier"`
	BillingCycle types.BillingCycle `json:"billing_cycle"`
	Trial        bool               `json:"trial"`
}

// Create opens a new subscription in Trial (when requested) or Pending.
// A user may hold at most one subscription in Pending/Trial/Active.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (sub *models.Subscription, err error) {
	defer s.sink.Timer("lifecycle.create")()
	defer func() { s.finish("lifecycle.create", err) }()

	if req == nil || req.UserID == "" {
		return nil, faults.ValidationFailure("user id is required")
	}
	if !req.Tier.Valid() {
		return nil, faults.ValidationFailure("Unknown tier: %s", req.Tier)
	}
	if !req.BillingCycle.Valid() {
		return nil, faults.ValidationFailure("Unknown billing cycle: %s", req.BillingCycle)
	}

	live, lerr := s.subs.FindLiveByUserID(ctx, req.UserID, types.LiveStatuses)
	if lerr != nil {
		return nil, faults.PersistenceFailure(lerr, "failed to check existing subscriptions")
	}
	if len(live) > 0 {
		return nil, faults.ValidationFailure("User already has an active subscription")
	}

	amount, aerr := billing.Amount(req.Tier, req.BillingCycle)
	if aerr != nil {
		return nil, faults.ValidationFailure("no price for %s/%s", req.Tier, req.BillingCycle)
	}
	monthly, merr := billing.MonthlyPrice(req.Tier)
	if merr != nil {
		return nil, faults.ValidationFailure("no monthly price for %s", req.Tier)
	}

	start := s.now()
	next := billing.NextBillingDate(req.BillingCycle, start)
	sub = &models.Subscription{
		UserID:          req.UserID,
		Status:          types.SubscriptionStatusPending,
		Tier:            req.Tier,
		BillingCycle:    req.BillingCycle,
		BillingAmount:   amount,
		MonthlyPrice:    monthly,
		Currency:        billing.Currency,
		StartDate:       start,
		NextBillingDate: &next,
		AutoRenewal:     true,
	}
	if req.Trial {
		sub.Status = types.SubscriptionStatusTrial
		trialEnd := start.AddDate(0, 0, s.trialDays)
		sub.TrialEndDate = &trialEnd
	}

	record := s.recorder.NewRecord(sub, models.HistoryActionCreated, req.Tier, req.Tier,
		fmt.Sprintf("Subscription created in %s", sub.Status), types.InitiatorUser, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionCreated, map[string]string{
		"billing_cycle": string(req.BillingCycle),
		"trial":         fmt.Sprintf("%t", req.Trial),
	}))

	logctx.FromCtx(ctx, s.log).Infow("subscription created",
		"subscription_id", sub.ID, "user_id", sub.UserID, "tier", sub.Tier, "status", sub.Status)
	return sub, nil
}

// Activate moves a Pending or Trial subscription to Active, stamping the
// activation date and recomputing the next billing date.
func (s *Service) Activate(ctx context.Context, subscriptionID string, initiator types.Initiator) (sub *models.Subscription, err error) {
	defer func() { s.finish("lifecycle.activate", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusPending, types.SubscriptionStatusTrial:
		// activatable
	case types.SubscriptionStatusActive:
		return nil, faults.AlreadyInState("Subscription is already active")
	case types.SubscriptionStatusSuspended:
		return nil, faults.InvalidStateTransition("Cannot activate suspended subscription")
	case types.SubscriptionStatusCancelled:
		return nil, faults.InvalidStateTransition("Cannot activate cancelled subscription")
	case types.SubscriptionStatusExpired:
		return nil, faults.InvalidStateTransition("Cannot activate expired subscription")
	default:
		return nil, faults.InvalidStateTransition("Cannot activate subscription in status %s", sub.Status)
	}

	activatedAt := s.now()
	sub.Status = types.SubscriptionStatusActive
	sub.ActivatedDate = &activatedAt
	next := billing.NextBillingDate(sub.BillingCycle, sub.BillingAnchor())
	sub.NextBillingDate = &next

	record := s.recorder.NewRecord(sub, models.HistoryActionActivated, sub.Tier, sub.Tier,
		"Subscription activated", initiator, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionActivated, nil))
	return sub, nil
}

// Cancel terminates an Active, Trial or Suspended subscription. Terminal:
// no transition leads out of Cancelled.
func (s *Service) Cancel(ctx context.Context, subscriptionID, reason string, initiator types.Initiator) (sub *models.Subscription, err error) {
	defer func() { s.finish("lifecycle.cancel", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrial, types.SubscriptionStatusSuspended:
		// cancellable
	case types.SubscriptionStatusPending:
		return nil, faults.InvalidStateTransition("Cannot cancel pending subscription, please contact support")
	case types.SubscriptionStatusCancelled:
		return nil, faults.AlreadyInState("Subscription is already cancelled")
	case types.SubscriptionStatusExpired:
		return nil, faults.InvalidStateTransition("Cannot cancel expired subscription")
	default:
		return nil, faults.InvalidStateTransition("Cannot cancel subscription in status %s", sub.Status)
	}

	cancelledAt := s.now()
	sub.Status = types.SubscriptionStatusCancelled
	sub.CancelledAt = &cancelledAt
	sub.AutoRenewal = false
	sub.CancellationReason = reason

	record := s.recorder.NewRecord(sub, models.HistoryActionCancelled, sub.Tier, sub.Tier,
		reason, initiator, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionCancelled, map[string]string{
		"reason": reason,
	}))
	return sub, nil
}

// Suspend parks an Active, Trial or Expired subscription.
func (s *Service) Suspend(ctx context.Context, subscriptionID, reason string, initiator types.Initiator) (sub *models.Subscription, err error) {
	defer func() { s.finish("lifecycle.suspend", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrial, types.SubscriptionStatusExpired:
		// suspendable
	case types.SubscriptionStatusSuspended:
		return nil, faults.AlreadyInState("Subscription is already suspended")
	case types.SubscriptionStatusCancelled:
		return nil, faults.InvalidStateTransition("Cannot suspend cancelled subscription")
	case types.SubscriptionStatusPending:
		return nil, faults.InvalidStateTransition("Cannot suspend pending subscription")
	default:
		return nil, faults.InvalidStateTransition("Cannot suspend subscription in status %s", sub.Status)
	}

	sub.Status = types.SubscriptionStatusSuspended

	record := s.recorder.NewRecord(sub, models.HistoryActionSuspended, sub.Tier, sub.Tier,
		reason, initiator, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionSuspended, map[string]string{
		"reason": reason,
	}))
	return sub, nil
}

// Resume returns a Suspended subscription to Active and recomputes the
// next billing date.
func (s *Service) Resume(ctx context.Context, subscriptionID string, initiator types.Initiator) (sub *models.Subscription, err error) {
	defer func() { s.finish("lifecycle.resume", err) }()

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusSuspended:
		// resumable
	case types.SubscriptionStatusActive:
		return nil, faults.AlreadyInState("Subscription is already active")
	case types.SubscriptionStatusPending:
		return nil, faults.InvalidStateTransition("Cannot resume pending subscription")
	case types.SubscriptionStatusTrial:
		return nil, faults.InvalidStateTransition("Cannot resume trial subscription")
	case types.SubscriptionStatusCancelled:
		return nil, faults.InvalidStateTransition("Cannot resume cancelled subscription")
	case types.SubscriptionStatusExpired:
		return nil, faults.InvalidStateTransition("Cannot resume expired subscription")
	default:
		return nil, faults.InvalidStateTransition("Cannot resume subscription in status %s", sub.Status)
	}

	sub.Status = types.SubscriptionStatusActive
	next := billing.NextBillingDate(sub.BillingCycle, sub.BillingAnchor())
	sub.NextBillingDate = &next

	record := s.recorder.NewRecord(sub, models.HistoryActionResumed, sub.Tier, sub.Tier,
		"Subscription resumed", initiator, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionResumed, nil))
	return sub, nil
}

// ChangeTier moves an Active or Trial subscription onto a different plan.
// Usage limits are rewritten to the new tier's quotas; counts are left as
// they are, so a downgrade can leave features over limit.
func (s *Service) ChangeTier(ctx context.Context, subscriptionID string, newTier types.Tier, initiator types.Initiator) (sub *models.Subscription, err error) {
	defer func() { s.finish("lifecycle.change_tier", err) }()

	if !newTier.Valid() {
		return nil, faults.ValidationFailure("Unknown tier: %s", newTier)
	}

	sub, err = s.fetch(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrial:
		// changeable
	default:
		return nil, faults.InvalidStateTransition("Cannot change tier in status %s", sub.Status)
	}
	if sub.Tier == newTier {
		return nil, faults.ValidationFailure("Already on tier: %s", newTier)
	}

	oldTier := sub.Tier
	amount, aerr := billing.Amount(newTier, sub.BillingCycle)
	if aerr != nil {
		return nil, faults.ValidationFailure("no price for %s/%s", newTier, sub.BillingCycle)
	}
	monthly, merr := billing.MonthlyPrice(newTier)
	if merr != nil {
		return nil, faults.ValidationFailure("no monthly price for %s", newTier)
	}

	sub.Tier = newTier
	sub.BillingAmount = amount
	sub.MonthlyPrice = monthly
	next := billing.NextBillingDate(sub.BillingCycle, sub.BillingAnchor())
	sub.NextBillingDate = &next
	if newTier.Above(oldTier) {
		upgradedAt := s.now()
		sub.UpgradedDate = &upgradedAt
	}

	record := s.recorder.NewRecord(sub, models.HistoryActionTierChanged, oldTier, newTier,
		fmt.Sprintf("Tier changed from %s to %s", oldTier, newTier), initiator, nil)
	if err = s.commit(ctx, sub, record); err != nil {
		return nil, err
	}

	if uerr := s.usage.ApplyTierChange(ctx, sub.ID, newTier); uerr != nil {
		// quota rewrite is repairable; the tier change itself has committed
		logctx.FromCtx(ctx, s.log).Errorw("failed to rewrite usage limits after tier change",
			"subscription_id", sub.ID, "new_tier", newTier, "err", uerr)
	}

	s.recorder.Publish(ctx, s.recorder.NewEvent(ctx, sub, events.EventSubscriptionTierChanged, map[string]string{
		"previous_tier": string(oldTier),
		"new_tier":      string(newTier),
	}))
	return sub, nil
}

// CheckHealth reports "healthy" for Active and Trial subscriptions and
// "unhealthy" for everything else.
func (s *Service) CheckHealth(ctx context.Context, subscriptionID string) (string, error) {
	sub, err := s.fetch(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	if sub.Healthy() {
		return "healthy", nil
	}
	return "unhealthy", nil
}

// Get returns one subscription by id.
func (s *Service) Get(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return s.fetch(ctx, subscriptionID)
}

// ListByUser returns all subscriptions a user has ever held, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	subs, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, faults.PersistenceFailure(err, "failed to load user subscriptions")
	}
	return subs, nil
}
