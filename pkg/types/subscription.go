package types

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// LiveStatuses are the statuses that count against the
// one-live-subscription-per-user rule.
var LiveStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
}

// Terminal reports whether the status has no outgoing transitions.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// Healthy reports whether a subscription in this status is usable.
func (s SubscriptionStatus) Healthy() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}

type Tier string

const (
	TierFree          Tier = "free"
	TierPro           Tier = "pro"
	TierAiPremium     Tier = "ai_premium"
	TierInstitutional Tier = "institutional"
)

var AllTiers = []Tier{TierFree, TierPro, TierAiPremium, TierInstitutional}

var tierRank = map[Tier]int{
	TierFree:          0,
	TierPro:           1,
	TierAiPremium:     2,
	TierInstitutional: 3,
}

// Rank returns the tier's position in the plan ordering, -1 for unknown tiers.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

func (t Tier) Valid() bool { return t.Rank() >= 0 }

// Above reports whether t is a higher plan than other.
func (t Tier) Above(other Tier) bool { return t.Rank() > other.Rank() }

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleAnnual    BillingCycle = "annual"
)

var AllBillingCycles = []BillingCycle{BillingCycleMonthly, BillingCycleQuarterly, BillingCycleAnnual}

// Months returns the recurrence length of the cycle, 0 for unknown cycles.
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleMonthly:
		return 1
	case BillingCycleQuarterly:
		return 3
	case BillingCycleAnnual:
		return 12
	}
	return 0
}

func (c BillingCycle) Valid() bool { return c.Months() > 0 }

// Initiator identifies who triggered a mutating operation.
type Initiator string

const (
	InitiatorUser   Initiator = "user"
	InitiatorSystem Initiator = "system"
)

// Feature names with per-tier usage quotas. Unknown features resolve to a
// quota of 0 (disabled), not an error.
type Feature string

const (
	FeatureAPICalls   Feature = "api_calls"
	FeaturePortfolios Feature = "portfolios"
	FeatureWatchlists Feature = "watchlists"
	FeatureAlerts     Feature = "alerts"
	FeatureAIInsights Feature = "ai_insights"
)

var AllFeatures = []Feature{
	FeatureAPICalls,
	FeaturePortfolios,
	FeatureWatchlists,
	FeatureAlerts,
	FeatureAIInsights,
}

// UnlimitedQuota is the sentinel limit meaning "no ceiling".
const UnlimitedQuota int64 = -1
