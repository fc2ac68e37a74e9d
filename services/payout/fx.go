package payout

import "go.uber.org/fx"

var Module = fx.Module("payout.service",
	fx.Provide(NewService),
)

var TaskModule = fx.Module("task.payout",
	fx.Provide(NewTask),
	fx.Invoke(registerHandlers),
)
