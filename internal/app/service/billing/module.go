package billing

import "go.uber.org/fx"

// Module exposes the billing service via Fx and fails startup on a price
// matrix gap.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func() error { return ValidatePricing() }),
)
