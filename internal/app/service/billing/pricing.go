package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/membership/pkg/types"
)

// priceMatrix is the fixed tier x cycle price table. It is process-wide,
// immutable configuration; ValidatePricing checks it exhaustively at
// startup so a missing combination can never surface as a runtime default.
var priceMatrix = map[types.Tier]map[types.BillingCycle]decimal.Decimal{
	types.TierFree: {
		types.BillingCycleMonthly:   decimal.Zero,
		types.BillingCycleQuarterly: decimal.Zero,
		types.BillingCycleAnnual:    decimal.Zero,
	},
	types.TierPro: {
		types.BillingCycleMonthly:   decimal.NewFromFloat(9.99),
		types.BillingCycleQuarterly: decimal.NewFromFloat(26.99),
		types.BillingCycleAnnual:    decimal.NewFromFloat(99.99),
	},
	types.TierAiPremium: {
		types.BillingCycleMonthly:   decimal.NewFromFloat(19.99),
		types.BillingCycleQuarterly: decimal.NewFromFloat(53.99),
		types.BillingCycleAnnual:    decimal.NewFromFloat(199.99),
	},
	types.TierInstitutional: {
		types.BillingCycleMonthly:   decimal.NewFromFloat(49.99),
		types.BillingCycleQuarterly: decimal.NewFromFloat(134.99),
		types.BillingCycleAnnual:    decimal.NewFromFloat(499.99),
	},
}

// Currency is the single currency the price matrix is denominated in.
const Currency = "USD"

// Amount returns the charge for one billing cycle of the given tier.
// Deterministic and side-effect free.
func Amount(tier types.Tier, cycle types.BillingCycle) (decimal.Decimal, error) {
	cycles, ok := priceMatrix[tier]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown tier: %s", tier)
	}
	price, ok := cycles[cycle]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown billing cycle: %s", cycle)
	}
	return price, nil
}

// MonthlyPrice returns the tier's monthly reference price.
func MonthlyPrice(tier types.Tier) (decimal.Decimal, error) {
	return Amount(tier, types.BillingCycleMonthly)
}

// NextBillingDate advances from by the cycle's month count. The caller
// passes the subscription's last-billed date when set, otherwise its start
// date; next-billing date is never set independently of that anchor.
func NextBillingDate(cycle types.BillingCycle, from time.Time) time.Time {
	return from.AddDate(0, cycle.Months(), 0)
}

// ValidatePricing verifies every tier x cycle combination has a price.
// Invoked at startup; a gap here is a deploy blocker, not a runtime default.
func ValidatePricing() error {
	for _, tier := range types.AllTiers {
		cycles, ok := priceMatrix[tier]
		if !ok {
			return fmt.Errorf("price matrix missing tier %s", tier)
		}
		for _, cycle := range types.AllBillingCycles {
			if _, ok := cycles[cycle]; !ok {
				return fmt.Errorf("price matrix missing %s/%s", tier, cycle)
			}
		}
	}
	return nil
}
