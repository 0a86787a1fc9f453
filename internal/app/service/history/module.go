package history

import "go.uber.org/fx"

// Module exposes the history recorder via Fx.
var Module = fx.Options(
	fx.Provide(NewRecorder),
)
