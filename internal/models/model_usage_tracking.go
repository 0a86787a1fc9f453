package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// UsageTracking holds one row per (subscription, feature). Created lazily on
// first use; the limit is rewritten whenever the owning subscription's tier
// changes. UsageCount only grows within a period and is zeroed only by an
// explicit billing-period reset.
type UsageTracking struct {
	ID             string        `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string        `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uidx_usage_sub_feature" json:"subscription_id"`
	UserID         string        `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Feature        types.Feature `gorm:"column:feature;type:varchar(64);not null;uniqueIndex:uidx_usage_sub_feature" json:"feature"`

	UsageCount int64 `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	// UsageLimit of -1 means unlimited.
	UsageLimit int64 `gorm:"column:usage_limit;not null" json:"usage_limit"`

	PeriodStart  time.Time  `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd    time.Time  `gorm:"column:period_end;not null" json:"period_end"`
	ResetDate    *time.Time `gorm:"column:reset_date;default:null" json:"reset_date"`
	LastUsedDate *time.Time `gorm:"column:last_used_date;default:null" json:"last_used_date"`

	LimitExceeded   bool       `gorm:"column:limit_exceeded;not null;default:false" json:"limit_exceeded"`
	ExceededCount   int64      `gorm:"column:exceeded_count;not null;default:0" json:"exceeded_count"`
	FirstExceededAt *time.Time `gorm:"column:first_exceeded_at;default:null" json:"first_exceeded_at"`

	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (UsageTracking) TableName() string {
	return "usage_tracking"
}

// Unlimited reports whether the row has no usage ceiling.
func (u *UsageTracking) Unlimited() bool {
	return u != nil && u.UsageLimit == types.UnlimitedQuota
}

// Remaining returns the quota left in the period; unlimited rows report -1.
func (u *UsageTracking) Remaining() int64 {
	if u.Unlimited() {
		return types.UnlimitedQuota
	}
	if r := u.UsageLimit - u.UsageCount; r > 0 {
		return r
	}
	return 0
}
