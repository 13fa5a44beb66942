package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velopay/payswitch-backend/api/routes"
	"github.com/velopay/payswitch-backend/internal/authentication"
	"github.com/velopay/payswitch-backend/internal/mandates"
	"github.com/velopay/payswitch-backend/internal/payments"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/internal/refunds"
	"github.com/velopay/payswitch-backend/internal/registry"
	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/metrics"
	"github.com/velopay/payswitch-backend/pkg/migrate"
	"github.com/velopay/payswitch-backend/pkg/outbox"
	pkgredis "github.com/velopay/payswitch-backend/pkg/redis"
	"github.com/velopay/payswitch-backend/pkg/secrets"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	switchMetrics := metrics.NewSwitchMetrics(promRegistry)
	secretsResolver := secrets.NewEnvResolver()
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	profileService, err := profiles.NewService(profiles.ServiceParams{
		Repo: profiles.NewRepository(dbClient.DB()),
	})
	exitOnError(logg, "failed to create profile service", err)

	registryService, err := registry.NewService(registry.ServiceParams{
		Repo:   registry.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Logger: logg,
	})
	exitOnError(logg, "failed to create connector registry", err)

	mandateService, err := mandates.NewService(mandates.ServiceParams{
		Repo:   mandates.NewRepository(dbClient.DB()),
		Outbox: outboxService,
		Logger: logg,
	})
	exitOnError(logg, "failed to create mandate service", err)

	authService, err := authentication.NewService(authentication.ServiceParams{
		Repo:      authentication.NewRepository(dbClient.DB()),
		Registry:  registryService,
		Secrets:   secretsResolver,
		Logger:    logg,
		Metrics:   switchMetrics,
		Retry:     cfg.Retry,
		Connector: cfg.Connector,
	})
	exitOnError(logg, "failed to create authentication service", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:      payments.NewRepository(dbClient.DB()),
		Profiles:  profileService,
		Registry:  registryService,
		Auth:      authService,
		Mandates:  mandateService,
		Secrets:   secretsResolver,
		Outbox:    outboxService,
		Tx:        dbClient,
		Logger:    logg,
		Metrics:   switchMetrics,
		Connector: cfg.Connector,
	})
	exitOnError(logg, "failed to create payment service", err)

	refundService, err := refunds.NewService(refunds.ServiceParams{
		Repo:      refunds.NewRepository(dbClient.DB()),
		Payments:  paymentService,
		Registry:  registryService,
		Secrets:   secretsResolver,
		Outbox:    outboxService,
		Tx:        dbClient,
		Logger:    logg,
		Metrics:   switchMetrics,
		Connector: cfg.Connector,
	})
	exitOnError(logg, "failed to create refund service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Gatherer: promRegistry,
			Payments: paymentService,
			Refunds:  refundService,
			Mandates: mandateService,
			Registry: registryService,
			Profiles: profileService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func exitOnError(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
