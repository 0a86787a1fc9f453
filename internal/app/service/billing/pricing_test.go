package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/membership/pkg/types"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		tier  types.Tier
		cycle types.BillingCycle
		want  string
	}{
		{types.TierFree, types.BillingCycleMonthly, "0"},
		{types.TierFree, types.BillingCycleAnnual, "0"},
		{types.TierPro, types.BillingCycleMonthly, "9.99"},
		{types.TierPro, types.BillingCycleQuarterly, "26.99"},
		{types.TierPro, types.BillingCycleAnnual, "99.99"},
		{types.TierAiPremium, types.BillingCycleMonthly, "19.99"},
		{types.TierAiPremium, types.BillingCycleAnnual, "199.99"},
		{types.TierInstitutional, types.BillingCycleQuarterly, "134.99"},
		{types.TierInstitutional, types.BillingCycleAnnual, "499.99"},
	}
	for _, tt := range tests {
		got, err := Amount(tt.tier, tt.cycle)
		require.NoError(t, err)
		require.True(t, got.Equal(decimal.RequireFromString(tt.want)),
			"%s/%s: got %s want %s", tt.tier, tt.cycle, got, tt.want)
	}
}

func TestAmount_UnknownTierOrCycle(t *testing.T) {
	_, err := Amount(types.Tier("platinum"), types.BillingCycleMonthly)
	require.Error(t, err)

	_, err = Amount(types.TierPro, types.BillingCycle("weekly"))
	require.Error(t, err)
}

func TestMonthlyPrice(t *testing.T) {
	got, err := MonthlyPrice(types.TierAiPremium)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("19.99")))
}

func TestNextBillingDate(t *testing.T) {
	from := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	require.Equal(t, time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC),
		NextBillingDate(types.BillingCycleMonthly, from))
	require.Equal(t, time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		NextBillingDate(types.BillingCycleQuarterly, from))
	require.Equal(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
		NextBillingDate(types.BillingCycleAnnual, from))
}

func TestNextBillingDate_MonthEndNormalizes(t *testing.T) {
	// Jan 31 + 1 month lands in early March per time.AddDate
	from := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		NextBillingDate(types.BillingCycleMonthly, from))
}

func TestValidatePricing(t *testing.T) {
	require.NoError(t, ValidatePricing())
}
