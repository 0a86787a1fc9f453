package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/membership/pkg/types"
)

// SubscriptionHistory is the append-only audit ledger: exactly one record
// per successful mutating operation, immutable once written.
type SubscriptionHistory struct {
	ID             string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string          `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	UserID         string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Action         string          `gorm:"column:action;type:varchar(64);not null" json:"action"`
	OldTier        types.Tier      `gorm:"column:old_tier;type:varchar(32)" json:"old_tier"`
	NewTier        types.Tier      `gorm:"column:new_tier;type:varchar(32)" json:"new_tier"`
	EffectiveAt    time.Time       `gorm:"column:effective_at;not null" json:"effective_at"`
	Reason         string          `gorm:"column:reason;type:varchar(255)" json:"reason"`
	Initiator      types.Initiator `gorm:"column:initiator;type:varchar(16);not null" json:"initiator"`
	// Extra stores operation-specific JSON data (for example a payment
	// transaction id for billing records).
	Extra datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
}

func (SubscriptionHistory) TableName() string {
	return "subscription_history"
}

// History action labels.
const (
	HistoryActionCreated             = "created"
	HistoryActionActivated           = "activated"
	HistoryActionCancelled           = "cancelled"
	HistoryActionSuspended           = "suspended"
	HistoryActionResumed             = "resumed"
	HistoryActionBilled              = "billed"
	HistoryActionBillingFailed       = "billing_failed"
	HistoryActionBillingCycleChanged = "billing_cycle_changed"
	HistoryActionTierChanged         = "tier_changed"
)
