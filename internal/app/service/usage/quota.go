package usage

import (
	"fmt"

	"github.com/fatflowers/membership/pkg/types"
)

// quotaTable is the fixed feature x tier usage ceiling, -1 meaning
// unlimited. Process-wide immutable configuration, checked exhaustively at
// startup by ValidateQuotas.
var quotaTable = map[types.Feature]map[types.Tier]int64{
	types.FeatureAPICalls: {
		types.TierFree:          1000,
		types.TierPro:           50000,
		types.TierAiPremium:     200000,
		types.TierInstitutional: types.UnlimitedQuota,
	},
	types.FeaturePortfolios: {
		types.TierFree:          1,
		types.TierPro:           10,
		types.TierAiPremium:     25,
		types.TierInstitutional: types.UnlimitedQuota,
	},
	types.FeatureWatchlists: {
		types.TierFree:          3,
		types.TierPro:           20,
		types.TierAiPremium:     50,
		types.TierInstitutional: types.UnlimitedQuota,
	},
	types.FeatureAlerts: {
		types.TierFree:          5,
		types.TierPro:           50,
		types.TierAiPremium:     200,
		types.TierInstitutional: types.UnlimitedQuota,
	},
	types.FeatureAIInsights: {
		types.TierFree:          0,
		types.TierPro:           10,
		types.TierAiPremium:     types.UnlimitedQuota,
		types.TierInstitutional: types.UnlimitedQuota,
	},
}

// QuotaFor returns the usage ceiling for a feature at a tier. Unknown
// features are disabled (limit 0) rather than rejected.
func QuotaFor(feature types.Feature, tier types.Tier) int64 {
	tiers, ok := quotaTable[feature]
	if !ok {
		return 0
	}
	limit, ok := tiers[tier]
	if !ok {
		return 0
	}
	return limit
}

// ValidateQuotas verifies every known feature has a limit for every tier.
func ValidateQuotas() error {
	for _, feature := range types.AllFeatures {
		tiers, ok := quotaTable[feature]
		if !ok {
			return fmt.Errorf("quota table missing feature %s", feature)
		}
		for _, tier := range types.AllTiers {
			if _, ok := tiers[tier]; !ok {
				return fmt.Errorf("quota table missing %s/%s", feature, tier)
			}
		}
	}
	return nil
}
