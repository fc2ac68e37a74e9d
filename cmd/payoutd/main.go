package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"creatorpay-engine/pkg/config"
	"creatorpay-engine/pkg/db"
	"creatorpay-engine/pkg/featureflags"
	"creatorpay-engine/pkg/gen"
	"creatorpay-engine/pkg/health"
	"creatorpay-engine/pkg/logger"
	"creatorpay-engine/pkg/profiling"
	"creatorpay-engine/pkg/redis"
	"creatorpay-engine/pkg/sequence"
	"creatorpay-engine/pkg/server"
	"creatorpay-engine/pkg/task"
	"creatorpay-engine/services/budget"
	"creatorpay-engine/services/fraud"
	"creatorpay-engine/services/ledger"
	"creatorpay-engine/services/payout"
	"creatorpay-engine/services/sysconfig"
	"creatorpay-engine/services/views"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		gen.Module,
		featureflags.Module,
		profiling.Module,
		health.Module,

		sysconfig.Module,
		budget.Module,
		views.Module,
		fraud.Module,
		ledger.Module,
		payout.Module,
		payout.TaskModule,

		task.Server,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
