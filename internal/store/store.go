package store

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"
)

// ErrNotFound is returned when a lookup matches no row. Callers translate it
// into their own failure vocabulary.
var ErrNotFound = errors.New("record not found")

// The engine performs no per-subscription write serialization; the store's
// own concurrency control is the backstop for concurrent writers on the
// same row.

// SubscriptionStore is the persistence surface for the aggregate root.
type SubscriptionStore interface {
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	// SaveWithHistory persists the mutation and its audit record in one
	// transaction: a failed history append rolls back the mutation.
	SaveWithHistory(ctx context.Context, sub *models.Subscription, record *models.SubscriptionHistory) error
	FindLiveByUserID(ctx context.Context, userID string, statuses []types.SubscriptionStatus) ([]*models.Subscription, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.Subscription, error)
	FindByStatus(ctx context.Context, status types.SubscriptionStatus) ([]*models.Subscription, error)
	FindDueForBilling(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

// HistoryStore persists the append-only audit ledger.
type HistoryStore interface {
	Save(ctx context.Context, record *models.SubscriptionHistory) error
	FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]*models.SubscriptionHistory, error)
}

// UsageStore persists per-feature usage counters.
type UsageStore interface {
	FindBySubscriptionAndFeature(ctx context.Context, subscriptionID string, feature types.Feature) (*models.UsageTracking, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]*models.UsageTracking, error)
	Save(ctx context.Context, row *models.UsageTracking) error
	SaveAll(ctx context.Context, rows []*models.UsageTracking) error
}

// SnapshotStore persists daily statistics snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snap *models.SubscriptionDailySnapshot) error
}

// ScanRequest is the admin listing request with filters and pagination.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}
