package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// SubscriptionDailySnapshot freezes a subscription's state once per day for
// the statistics queries.
type SubscriptionDailySnapshot struct {
	ID              string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID  string                   `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	UserID          string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Status          types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Tier            types.Tier               `gorm:"column:tier;type:varchar(32);not null" json:"tier"`
	BillingCycle    types.BillingCycle       `gorm:"column:billing_cycle;type:varchar(16);not null" json:"billing_cycle"`
	NextBillingDate *time.Time               `gorm:"column:next_billing_date;default:null" json:"next_billing_date"`

	SnapshotDate      string    `gorm:"column:snapshot_date;type:varchar(10);not null;index" json:"snapshot_date"`
	SnapshotCreatedAt time.Time `gorm:"column:snapshot_created_at;not null" json:"snapshot_created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}
