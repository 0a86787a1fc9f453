package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"
)

const usageCacheTTL = time.Minute

// gormUsageStore persists usage counters in Postgres with an optional Redis
// read cache in front of the hot FindBySubscriptionAndFeature path. A nil
// redis client disables caching.
type gormUsageStore struct {
	db        *gorm.DB
	rdb       *redis.Client
	keyPrefix string
}

func NewUsageStore(db *gorm.DB, rdb *redis.Client) UsageStore {
	return &gormUsageStore{db: db, rdb: rdb, keyPrefix: "usage:"}
}

func (s *gormUsageStore) cacheKey(subscriptionID string, feature types.Feature) string {
	return fmt.Sprintf("%s%s:%s", s.keyPrefix, subscriptionID, feature)
}

func (s *gormUsageStore) fromCache(ctx context.Context, key string) *models.UsageTracking {
	if s.rdb == nil {
		return nil
	}
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil // miss or redis down, fall through to the DB
	}
	var row models.UsageTracking
	if err := json.Unmarshal(data, &row); err != nil {
		return nil
	}
	return &row
}

func (s *gormUsageStore) toCache(ctx context.Context, row *models.UsageTracking) {
	if s.rdb == nil || row == nil {
		return
	}
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	// best-effort; a failed cache write just means a DB read later
	_ = s.rdb.Set(ctx, s.cacheKey(row.SubscriptionID, row.Feature), data, usageCacheTTL).Err()
}

func (s *gormUsageStore) dropCache(ctx context.Context, subscriptionID string, feature types.Feature) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.Del(ctx, s.cacheKey(subscriptionID, feature)).Err()
}

func (s *gormUsageStore) FindBySubscriptionAndFeature(ctx context.Context, subscriptionID string, feature types.Feature) (*models.UsageTracking, error) {
	if row := s.fromCache(ctx, s.cacheKey(subscriptionID, feature)); row != nil {
		return row, nil
	}
	var row models.UsageTracking
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND feature = ?", subscriptionID, feature).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load usage record: %w", err)
	}
	s.toCache(ctx, &row)
	return &row, nil
}

func (s *gormUsageStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]*models.UsageTracking, error) {
	var rows []*models.UsageTracking
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("feature asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	return rows, nil
}

func (s *gormUsageStore) Save(ctx context.Context, row *models.UsageTracking) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	s.dropCache(ctx, row.SubscriptionID, row.Feature)
	return nil
}

func (s *gormUsageStore) SaveAll(ctx context.Context, rows []*models.UsageTracking) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == "" {
			row.ID = tool.GenerateUUIDV7()
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save usage records: %w", err)
	}
	for _, row := range rows {
		s.dropCache(ctx, row.SubscriptionID, row.Feature)
	}
	return nil
}
