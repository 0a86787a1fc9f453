package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionStatus(t *testing.T) {
	require.True(t, SubscriptionStatusCancelled.Terminal())
	require.True(t, SubscriptionStatusExpired.Terminal())
	require.False(t, SubscriptionStatusActive.Terminal())
	require.False(t, SubscriptionStatusSuspended.Terminal())

	require.True(t, SubscriptionStatusActive.Healthy())
	require.True(t, SubscriptionStatusTrial.Healthy())
	require.False(t, SubscriptionStatusPending.Healthy())
	require.False(t, SubscriptionStatusSuspended.Healthy())
}

func TestTierOrdering(t *testing.T) {
	require.True(t, TierPro.Above(TierFree))
	require.True(t, TierInstitutional.Above(TierAiPremium))
	require.False(t, TierFree.Above(TierPro))
	require.False(t, TierPro.Above(TierPro))

	require.True(t, TierAiPremium.Valid())
	require.False(t, Tier("platinum").Valid())
	require.Equal(t, -1, Tier("platinum").Rank())
}

func TestBillingCycleMonths(t *testing.T) {
	require.Equal(t, 1, BillingCycleMonthly.Months())
	require.Equal(t, 3, BillingCycleQuarterly.Months())
	require.Equal(t, 12, BillingCycleAnnual.Months())
	require.Equal(t, 0, BillingCycle("weekly").Months())
	require.False(t, BillingCycle("weekly").Valid())
}
