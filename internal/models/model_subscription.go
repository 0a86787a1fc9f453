package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/membership/pkg/types"
)

// Subscription is the aggregate root for a user's paid plan. Rows are never
// deleted; terminal states are expressed through Status.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	Tier          types.Tier         `gorm:"column:tier;type:varchar(32);not null" json:"tier"`
	BillingCycle  types.BillingCycle `gorm:"column:billing_cycle;type:varchar(16);not null" json:"billing_cycle"`
	BillingAmount decimal.Decimal    `gorm:"column:billing_amount;type:numeric(12,2);not null" json:"billing_amount"`
	// MonthlyPrice is the tier's monthly reference price, kept for
	// proration and display regardless of the active cycle.
	MonthlyPrice decimal.Decimal `gorm:"column:monthly_price;type:numeric(12,2);not null" json:"monthly_price"`
	Currency     string          `gorm:"column:currency;type:varchar(8);not null;default:'USD'" json:"currency"`

	StartDate       time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate         *time.Time `gorm:"column:end_date;default:null" json:"end_date"`
	TrialEndDate    *time.Time `gorm:"column:trial_end_date;default:null" json:"trial_end_date"`
	ActivatedDate   *time.Time `gorm:"column:activated_date;default:null" json:"activated_date"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	LastBilledDate  *time.Time `gorm:"column:last_billed_date;default:null" json:"last_billed_date"`
	NextBillingDate *time.Time `gorm:"column:next_billing_date;default:null;index" json:"next_billing_date"`
	UpgradedDate    *time.Time `gorm:"column:upgraded_date;default:null" json:"upgraded_date"`

	AutoRenewal           bool   `gorm:"column:auto_renewal;not null;default:true" json:"auto_renewal"`
	FailedBillingAttempts int    `gorm:"column:failed_billing_attempts;not null;default:0" json:"failed_billing_attempts"`
	CancellationReason    string `gorm:"column:cancellation_reason;type:varchar(255)" json:"cancellation_reason"`

	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Live reports whether the subscription counts against the
// one-live-subscription-per-user rule.
func (s *Subscription) Live() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case types.SubscriptionStatusPending, types.SubscriptionStatusTrial, types.SubscriptionStatusActive:
		return true
	}
	return false
}

// Healthy reports the synchronous health-check result for the subscription.
func (s *Subscription) Healthy() bool {
	return s != nil && s.Status.Healthy()
}

// BillingAnchor is the date the next billing date derives from: the last
// billed date when set, otherwise the start date.
func (s *Subscription) BillingAnchor() time.Time {
	if s.LastBilledDate != nil {
		return *s.LastBilledDate
	}
	return s.StartDate
}
