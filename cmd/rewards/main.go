package main

import (
	"log"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	taskq "swaply-rewards/pkg/asynq"
	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/db"
	"swaply-rewards/pkg/hashistack/secretmanager"
	"swaply-rewards/pkg/health"
	"swaply-rewards/pkg/logger"
	"swaply-rewards/pkg/metrics"
	"swaply-rewards/pkg/redis"
	"swaply-rewards/pkg/sequence"
	"swaply-rewards/pkg/server"
	"swaply-rewards/services/campaign"
	"swaply-rewards/services/coupon"
	"swaply-rewards/services/redeem"
	"swaply-rewards/services/reward"
	"swaply-rewards/services/spin"
)

func main() {
	metrics.Init()

	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(db.Otel, db.Metric),
		redis.Module,
		taskq.Client,
		taskq.Server,
		sequence.Module,
		fx.Provide(
			provideTracerProvider,
			provideSnowflakeNode,
		),
		health.Module,
		campaign.Module,
		reward.Module,
		reward.Tasks,
		coupon.Module,
		spin.Module,
		redeem.Module,
		redeem.Tasks,
		fx.Invoke(registerMetricsRoute),
		server.ProvideHTTPServer,
		fxLogger,
	}

	if os.Getenv("VAULT_ADDR") != "" {
		opts = append([]fx.Option{secretmanager.Module}, opts...)
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

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func registerMetricsRoute(e *gin.Engine) {
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
