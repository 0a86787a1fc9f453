package history

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

// Recorder builds audit records and publishes domain events for committed
// mutations. History records ride in the same transaction as the mutation
// (store.SubscriptionStore.SaveWithHistory); event publishing is a separate
// best-effort step that never re-fails the committed change.
type Recorder struct {
	records store.HistoryStore
	pub     events.Publisher
	exec    *resilience.Executor
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewRecorder(records store.HistoryStore, pub events.Publisher, exec *resilience.Executor, log *zap.SugaredLogger) *Recorder {
	return &Recorder{records: records, pub: pub, exec: exec, log: log, now: time.Now}
}

// NewRecord builds the audit record for one mutating operation.
func (r *Recorder) NewRecord(sub *models.Subscription, action string, oldTier, newTier types.Tier, reason string, initiator types.Initiator, extra map[string]any) *models.SubscriptionHistory {
	rec := &models.SubscriptionHistory{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Action:         action,
		OldTier:        oldTier,
		NewTier:        newTier,
		EffectiveAt:    r.now(),
		Reason:         reason,
		Initiator:      initiator,
	}
	if len(extra) > 0 {
		rec.Extra = datatypes.JSONMap(extra)
	}
	return rec
}

// NewEvent builds the domain event for a committed mutation, picking the
// correlation id up from the call's context.
func (r *Recorder) NewEvent(ctx context.Context, sub *models.Subscription, eventType events.EventType, metadata map[string]string) *events.Event {
	return &events.Event{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Type:           eventType,
		Timestamp:      r.now(),
		CorrelationID:  logctx.CorrelationID(ctx),
		Tier:           sub.Tier,
		Metadata:       metadata,
	}
}

// Publish sends the event through the resilience layer. Failures are logged
// and swallowed: the mutation has already committed and stays committed.
func (r *Recorder) Publish(ctx context.Context, event *events.Event) {
	err := r.exec.Run(ctx, resilience.DependencyEventBus, func(ctx context.Context) error {
		return r.pub.Publish(ctx, event)
	})
	if err != nil {
		logctx.FromCtx(ctx, r.log).Warnw("event publish failed",
			"type", event.Type,
			"subscription_id", event.SubscriptionID,
			"err", err,
		)
	}
}

// History returns the audit ledger for a subscription, oldest first.
func (r *Recorder) History(ctx context.Context, subscriptionID string) ([]*models.SubscriptionHistory, error) {
	return r.records.FindBySubscriptionID(ctx, subscriptionID)
}
