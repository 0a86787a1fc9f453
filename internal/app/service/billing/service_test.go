package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/faults"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	seq       int
	subs      map[string]*models.Subscription
	histories []*models.SubscriptionHistory
	due       []*models.Subscription
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]*models.Subscription)}
}

func (m *memStore) seed(sub *models.Subscription) *models.Subscription {
	m.seq++
	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub-%d", m.seq)
	}
	m.subs[sub.ID] = sub
	return sub
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, sub *models.Subscription) error {
	m.subs[sub.ID] = sub
	return nil
}

func (m *memStore) SaveWithHistory(_ context.Context, sub *models.Subscription, record *models.SubscriptionHistory) error {
	m.subs[sub.ID] = sub
	m.histories = append(m.histories, record)
	return nil
}

func (m *memStore) FindLiveByUserID(context.Context, string, []types.SubscriptionStatus) ([]*models.Subscription, error) {
	panic("not used")
}

func (m *memStore) FindByUserID(context.Context, string) ([]*models.Subscription, error) {
	panic("not used")
}

func (m *memStore) FindByStatus(context.Context, types.SubscriptionStatus) ([]*models.Subscription, error) {
	panic("not used")
}

func (m *memStore) FindDueForBilling(context.Context, time.Time) ([]*models.Subscription, error) {
	return m.due, nil
}

func (m *memStore) Scan(context.Context, *store.ScanRequest) (*store.ScanResponse, error) {
	panic("not used")
}

type memHistory struct{ records []*models.SubscriptionHistory }

func (m *memHistory) Save(_ context.Context, record *models.SubscriptionHistory) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memHistory) FindBySubscriptionID(context.Context, string) ([]*models.SubscriptionHistory, error) {
	return m.records, nil
}

type capturePub struct{ events []*events.Event }

func (p *capturePub) Publish(_ context.Context, event *events.Event) error {
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	svc  *Service
	subs *memStore
	pub  *capturePub
}

func newFixture() *fixture {
	log := zap.NewNop().Sugar()
	exec := resilience.NewExecutor(resilience.Settings{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         time.Second,
		MaxRetries:       0,
		InitialDelay:     time.Millisecond,
		MaxDelay:         time.Millisecond,
	}, log)

	subs := newMemStore()
	pub := &capturePub{}
	rec := history.NewRecorder(&memHistory{}, pub, exec, log)

	svc := NewService(subs, rec, exec, metrics.NopSink{}, log)
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, subs: subs, pub: pub}
}

func (f *fixture) seedActive(tier types.Tier, cycle types.BillingCycle) *models.Subscription {
	amount, _ := Amount(tier, cycle)
	next := testNow.AddDate(0, 0, -1)
	return f.subs.seed(&models.Subscription{
		UserID:          "user-1",
		Status:          types.SubscriptionStatusActive,
		Tier:            tier,
		BillingCycle:    cycle,
		BillingAmount:   amount,
		Currency:        "USD",
		StartDate:       testNow.AddDate(0, -2, 0),
		NextBillingDate: &next,
		AutoRenewal:     true,
	})
}

func TestProcessBilling_Active(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)
	seeded.FailedBillingAttempts = 2

	sub, err := f.svc.ProcessBilling(context.Background(), seeded.ID, "pay-123")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.LastBilledDate)
	require.Equal(t, testNow, *sub.LastBilledDate)
	require.Equal(t, testNow.AddDate(0, 1, 0), *sub.NextBillingDate)
	require.Equal(t, 0, sub.FailedBillingAttempts)
	require.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("9.99")))

	require.Len(t, f.subs.histories, 1)
	rec := f.subs.histories[0]
	require.Equal(t, models.HistoryActionBilled, rec.Action)
	require.Equal(t, "pay-123", rec.Extra["payment_transaction_id"])

	require.Len(t, f.pub.events, 1)
	require.Equal(t, events.EventSubscriptionBilled, f.pub.events[0].Type)
	require.Equal(t, "9.99", f.pub.events[0].Metadata["amount"])
}

func TestProcessBilling_AnnualCycle(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierInstitutional, types.BillingCycleAnnual)

	sub, err := f.svc.ProcessBilling(context.Background(), seeded.ID, "pay-9")
	require.NoError(t, err)
	require.Equal(t, testNow.AddDate(1, 0, 0), *sub.NextBillingDate)
	require.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("499.99")))
}

func TestProcessBilling_RejectsNonActive(t *testing.T) {
	tests := []struct {
		status types.SubscriptionStatus
		msg    string
	}{
		{types.SubscriptionStatusPending, "Cannot bill pending subscription"},
		{types.SubscriptionStatusTrial, "Cannot bill trial subscription"},
		{types.SubscriptionStatusSuspended, "Cannot bill suspended subscription"},
		{types.SubscriptionStatusCancelled, "Cannot bill cancelled subscription"},
		{types.SubscriptionStatusExpired, "Cannot bill expired subscription"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture()
			seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)
			seeded.Status = tt.status

			_, err := f.svc.ProcessBilling(context.Background(), seeded.ID, "pay-1")
			require.Equal(t, faults.KindInvalidStateTransition, faults.KindOf(err))
			require.Contains(t, err.Error(), tt.msg)
			require.Empty(t, f.subs.histories)
			require.Empty(t, f.pub.events)
			// rejected billing leaves the record untouched
			require.Nil(t, f.subs.subs[seeded.ID].LastBilledDate)
		})
	}
}

func TestProcessBilling_MissingSubscription(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ProcessBilling(context.Background(), "sub-none", "pay-1")
	require.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestUpdateBillingCycle(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)
	lastBilled := testNow.AddDate(0, 0, -15)
	seeded.LastBilledDate = &lastBilled

	sub, err := f.svc.UpdateBillingCycle(context.Background(), seeded.ID, types.BillingCycleAnnual)
	require.NoError(t, err)
	require.Equal(t, types.BillingCycleAnnual, sub.BillingCycle)
	require.True(t, sub.BillingAmount.Equal(decimal.RequireFromString("99.99")))
	// next billing anchors on the last billed date, not on the change date
	require.Equal(t, lastBilled.AddDate(1, 0, 0), *sub.NextBillingDate)

	require.Equal(t, models.HistoryActionBillingCycleChanged, f.subs.histories[0].Action)
	require.Equal(t, events.EventBillingCycleChanged, f.pub.events[0].Type)
}

func TestUpdateBillingCycle_SameCycleRejected(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)

	_, err := f.svc.UpdateBillingCycle(context.Background(), seeded.ID, types.BillingCycleMonthly)
	require.Equal(t, faults.KindValidationFailure, faults.KindOf(err))
	require.Contains(t, err.Error(), "Already on billing cycle: monthly")
}

func TestUpdateBillingCycle_UnknownCycleRejected(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)

	_, err := f.svc.UpdateBillingCycle(context.Background(), seeded.ID, types.BillingCycle("weekly"))
	require.Equal(t, faults.KindValidationFailure, faults.KindOf(err))
}

func TestUpdateBillingCycle_RequiresLiveStatus(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)
	seeded.Status = types.SubscriptionStatusSuspended

	_, err := f.svc.UpdateBillingCycle(context.Background(), seeded.ID, types.BillingCycleAnnual)
	require.Equal(t, faults.KindInvalidStateTransition, faults.KindOf(err))
}

func TestRecordBillingFailure(t *testing.T) {
	f := newFixture()
	seeded := f.seedActive(types.TierPro, types.BillingCycleMonthly)

	sub, err := f.svc.RecordBillingFailure(context.Background(), seeded.ID, "card declined")
	require.NoError(t, err)
	require.Equal(t, 1, sub.FailedBillingAttempts)
	// status decisions belong to the scheduler, not this call
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)

	rec := f.subs.histories[0]
	require.Equal(t, models.HistoryActionBillingFailed, rec.Action)
	require.Equal(t, "card declined", rec.Reason)
}

func TestListDueForBilling(t *testing.T) {
	f := newFixture()
	f.subs.due = []*models.Subscription{{ID: "sub-1"}, {ID: "sub-2"}}

	subs, err := f.svc.ListDueForBilling(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, subs, 2)
}
