package usage

import "go.uber.org/fx"

// Module exposes the usage limiter via Fx and fails startup on a quota
// table gap.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func() error { return ValidateQuotas() }),
)
