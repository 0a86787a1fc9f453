package usage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/membership/pkg/types"
)

func TestQuotaFor(t *testing.T) {
	tests := []struct {
		feature types.Feature
		tier    types.Tier
		want    int64
	}{
		{types.FeatureAPICalls, types.TierFree, 1000},
		{types.FeatureAPICalls, types.TierPro, 50000},
		{types.FeatureAPICalls, types.TierAiPremium, 200000},
		{types.FeatureAPICalls, types.TierInstitutional, types.UnlimitedQuota},
		{types.FeaturePortfolios, types.TierFree, 1},
		{types.FeatureWatchlists, types.TierPro, 20},
		{types.FeatureAlerts, types.TierAiPremium, 200},
		{types.FeatureAIInsights, types.TierFree, 0},
		{types.FeatureAIInsights, types.TierAiPremium, types.UnlimitedQuota},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, QuotaFor(tt.feature, tt.tier), "%s/%s", tt.feature, tt.tier)
	}
}

func TestQuotaFor_UnknownFeatureIsDisabled(t *testing.T) {
	require.Equal(t, int64(0), QuotaFor(types.Feature("teleport"), types.TierInstitutional))
}

func TestQuotaFor_UnknownTierIsDisabled(t *testing.T) {
	require.Equal(t, int64(0), QuotaFor(types.FeatureAPICalls, types.Tier("platinum")))
}

func TestValidateQuotas(t *testing.T) {
	require.NoError(t, ValidateQuotas())
}
