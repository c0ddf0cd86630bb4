package redeem

import "go.uber.org/fx"

var Module = fx.Module("redeem.module",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)

var Tasks = fx.Module("redeem.tasks",
	fx.Provide(NewTaskHandler),
	fx.Invoke(RegisterTaskHandlers),
)
