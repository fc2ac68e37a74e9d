package sysconfig

import "go.uber.org/fx"

var Module = fx.Module("sysconfig.service",
	fx.Provide(NewService),
)
