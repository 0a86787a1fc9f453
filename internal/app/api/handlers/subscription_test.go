package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/app/service/lifecycle"
	"github.com/fatflowers/membership/internal/app/service/usage"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
	"github.com/fatflowers/membership/pkg/types"
)

type stubSubs struct {
	subs map[string]*models.Subscription
}

func (m *stubSubs) FindByID(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sub, nil
}

func (m *stubSubs) Save(_ context.Context, sub *models.Subscription) error {
	m.subs[sub.ID] = sub
	return nil
}

func (m *stubSubs) SaveWithHistory(_ context.Context, sub *models.Subscription, _ *models.SubscriptionHistory) error {
	if sub.ID == "" {
		sub.ID = "sub-new"
	}
	m.subs[sub.ID] = sub
	return nil
}

func (m *stubSubs) FindLiveByUserID(context.Context, string, []types.SubscriptionStatus) ([]*models.Subscription, error) {
	return nil, nil
}

func (m *stubSubs) FindByUserID(context.Context, string) ([]*models.Subscription, error) {
	return nil, nil
}

func (m *stubSubs) FindByStatus(context.Context, types.SubscriptionStatus) ([]*models.Subscription, error) {
	panic("not used")
}

func (m *stubSubs) FindDueForBilling(context.Context, time.Time) ([]*models.Subscription, error) {
	panic("not used")
}

func (m *stubSubs) Scan(context.Context, *store.ScanRequest) (*store.ScanResponse, error) {
	panic("not used")
}

type stubHistory struct{}

func (stubHistory) Save(context.Context, *models.SubscriptionHistory) error { return nil }

func (stubHistory) FindBySubscriptionID(context.Context, string) ([]*models.SubscriptionHistory, error) {
	return nil, nil
}

type stubUsage struct{}

func (stubUsage) FindBySubscriptionAndFeature(context.Context, string, types.Feature) (*models.UsageTracking, error) {
	return nil, store.ErrNotFound
}

func (stubUsage) FindBySubscriptionID(context.Context, string) ([]*models.UsageTracking, error) {
	return nil, nil
}

func (stubUsage) Save(context.Context, *models.UsageTracking) error { return nil }

func (stubUsage) SaveAll(context.Context, []*models.UsageTracking) error { return nil }

type stubPub struct{}

func (stubPub) Publish(context.Context, *events.Event) error { return nil }

func newTestRouter(subs *stubSubs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	exec := resilience.NewExecutor(resilience.DefaultSettings(), log)
	rec := history.NewRecorder(stubHistory{}, stubPub{}, exec, log)
	usageSvc := usage.NewService(stubUsage{}, subs, exec, metrics.NopSink{}, log)
	cfg := &config.Config{Billing: config.BillingConfig{TrialDays: 7}}
	svc := lifecycle.NewService(cfg, subs, usageSvc, rec, exec, metrics.NopSink{}, log)

	r := gin.New()
	RegisterSubscriptionRoutes(r, svc, rec)
	return r
}

func TestApiCreateSubscription(t *testing.T) {
	r := newTestRouter(&stubSubs{subs: map[string]*models.Subscription{}})

	body, _ := json.Marshal(map[string]any{
		"user_id":       "user-1",
		"tier":          "pro",
		"billing_cycle": "monthly",
	})
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestApiGetSubscription_NotFound(t *testing.T) {
	r := newTestRouter(&stubSubs{subs: map[string]*models.Subscription{}})

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/sub-missing", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "Subscription not found: sub-missing")
}

func TestApiActivateSubscription_Conflict(t *testing.T) {
	r := newTestRouter(&stubSubs{subs: map[string]*models.Subscription{
		"sub-1": {ID: "sub-1", UserID: "user-1", Status: types.SubscriptionStatusActive, Tier: types.TierPro, BillingCycle: types.BillingCycleMonthly},
	}})

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/sub-1/activate", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "Subscription is already active")
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}
