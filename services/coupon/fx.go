package coupon

import "go.uber.org/fx"

var Module = fx.Module("coupon.module",
	fx.Provide(NewService),
)
