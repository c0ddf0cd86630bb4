package reward

import "go.uber.org/fx"

var Module = fx.Module("reward.module",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)

var Tasks = fx.Module("reward.tasks",
	fx.Invoke(RegisterTaskHandlers),
)
