package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
)

type gormSubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) SubscriptionStore {
	return &gormSubscriptionStore{db: db}
}

func (s *gormSubscriptionStore) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormSubscriptionStore) Save(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *gormSubscriptionStore) SaveWithHistory(ctx context.Context, sub *models.Subscription, record *models.SubscriptionHistory) error {
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	if record.ID == "" {
		record.ID = tool.GenerateUUIDV7()
	}
	record.SubscriptionID = sub.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist subscription mutation: %w", err)
	}
	return nil
}

func (s *gormSubscriptionStore) FindLiveByUserID(ctx context.Context, userID string, statuses []types.SubscriptionStatus) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load live subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormSubscriptionStore) FindByUserID(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load user subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormSubscriptionStore) FindByStatus(ctx context.Context, status types.SubscriptionStatus) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions by status: %w", err)
	}
	return subs, nil
}

func (s *gormSubscriptionStore) FindDueForBilling(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status = ? AND auto_renewal = ? AND next_billing_date <= ?", types.SubscriptionStatusActive, true, asOf).
		Order("next_billing_date asc").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions due for billing: %w", err)
	}
	return subs, nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan implements paginated admin listing with filters.
func (s *gormSubscriptionStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Subscription{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var rows []*models.Subscription
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return &ScanResponse{Items: rows, Total: total}, nil
}

type gormHistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) HistoryStore {
	return &gormHistoryStore{db: db}
}

func (s *gormHistoryStore) Save(ctx context.Context, record *models.SubscriptionHistory) error {
	if record.ID == "" {
		record.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (s *gormHistoryStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]*models.SubscriptionHistory, error) {
	var records []*models.SubscriptionHistory
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("effective_at asc").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

type gormSnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) SnapshotStore {
	return &gormSnapshotStore{db: db}
}

func (s *gormSnapshotStore) Save(ctx context.Context, snap *models.SubscriptionDailySnapshot) error {
	if snap.ID == "" {
		snap.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
