package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type memHistory struct{ records []*models.SubscriptionHistory }

func (m *memHistory) Save(_ context.Context, record *models.SubscriptionHistory) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memHistory) FindBySubscriptionID(_ context.Context, subscriptionID string) ([]*models.SubscriptionHistory, error) {
	var out []*models.SubscriptionHistory
	for _, r := range m.records {
		if r.SubscriptionID == subscriptionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type capturePub struct {
	events []*events.Event
	err    error
}

func (p *capturePub) Publish(_ context.Context, event *events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newTestRecorder() (*Recorder, *memHistory, *capturePub) {
	log := zap.NewNop().Sugar()
	exec := resilience.NewExecutor(resilience.Settings{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         time.Second,
		MaxRetries:       0,
		InitialDelay:     time.Millisecond,
		MaxDelay:         time.Millisecond,
	}, log)
	records := &memHistory{}
	pub := &capturePub{}
	r := NewRecorder(records, pub, exec, log)
	r.now = func() time.Time { return testNow }
	return r, records, pub
}

func testSubscription() *models.Subscription {
	return &models.Subscription{
		ID:     "sub-1",
		UserID: "user-1",
		Tier:   types.TierPro,
		Status: types.SubscriptionStatusActive,
	}
}

func TestNewRecord(t *testing.T) {
	r, _, _ := newTestRecorder()

	rec := r.NewRecord(testSubscription(), models.HistoryActionTierChanged,
		types.TierPro, types.TierAiPremium, "upgrade", types.InitiatorUser,
		map[string]any{"payment_transaction_id": "pay-1"})

	require.Equal(t, "sub-1", rec.SubscriptionID)
	require.Equal(t, "user-1", rec.UserID)
	require.Equal(t, models.HistoryActionTierChanged, rec.Action)
	require.Equal(t, types.TierPro, rec.OldTier)
	require.Equal(t, types.TierAiPremium, rec.NewTier)
	require.Equal(t, testNow, rec.EffectiveAt)
	require.Equal(t, "upgrade", rec.Reason)
	require.Equal(t, types.InitiatorUser, rec.Initiator)
	require.Equal(t, "pay-1", rec.Extra["payment_transaction_id"])
}

func TestNewRecord_EmptyExtraStaysNil(t *testing.T) {
	r, _, _ := newTestRecorder()
	rec := r.NewRecord(testSubscription(), models.HistoryActionCreated,
		types.TierPro, types.TierPro, "", types.InitiatorSystem, nil)
	require.Nil(t, rec.Extra)
}

func TestNewEvent_CarriesCorrelationID(t *testing.T) {
	r, _, _ := newTestRecorder()
	ctx := logctx.WithCorrelationID(context.Background(), "corr-42")

	ev := r.NewEvent(ctx, testSubscription(), events.EventSubscriptionActivated, map[string]string{"k": "v"})
	require.Equal(t, "sub-1", ev.SubscriptionID)
	require.Equal(t, events.EventSubscriptionActivated, ev.Type)
	require.Equal(t, "corr-42", ev.CorrelationID)
	require.Equal(t, testNow, ev.Timestamp)
	require.Equal(t, types.TierPro, ev.Tier)
	require.Equal(t, "v", ev.Metadata["k"])
}

func TestPublish_DeliversEvent(t *testing.T) {
	r, _, pub := newTestRecorder()
	ev := r.NewEvent(context.Background(), testSubscription(), events.EventSubscriptionCreated, nil)

	r.Publish(context.Background(), ev)
	require.Len(t, pub.events, 1)
	require.Equal(t, events.EventSubscriptionCreated, pub.events[0].Type)
}

func TestPublish_SwallowsFailures(t *testing.T) {
	r, _, pub := newTestRecorder()
	pub.err = errors.New("broker down")

	ev := r.NewEvent(context.Background(), testSubscription(), events.EventSubscriptionCreated, nil)
	// must not panic or surface the error
	r.Publish(context.Background(), ev)
	require.Empty(t, pub.events)
}

func TestHistory_ReturnsLedger(t *testing.T) {
	r, records, _ := newTestRecorder()
	records.records = []*models.SubscriptionHistory{
		{SubscriptionID: "sub-1", Action: models.HistoryActionCreated},
		{SubscriptionID: "sub-2", Action: models.HistoryActionCreated},
		{SubscriptionID: "sub-1", Action: models.HistoryActionActivated},
	}

	out, err := r.History(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
}
