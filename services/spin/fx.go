package spin

import "go.uber.org/fx"

var Module = fx.Module("spin.module",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
