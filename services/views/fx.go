package views

import "go.uber.org/fx"

var Module = fx.Module("views.service",
	fx.Provide(NewService),
)
