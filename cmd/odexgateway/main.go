package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"seabridge/ms_odex_gateway/internal/adapters/apilog/postgres"
	"seabridge/ms_odex_gateway/internal/adapters/carrier/odex"
	apiloghttp "seabridge/ms_odex_gateway/internal/adapters/http/apilog"
	authhttp "seabridge/ms_odex_gateway/internal/adapters/http/auth"
	form13http "seabridge/ms_odex_gateway/internal/adapters/http/form13"
	healthhttp "seabridge/ms_odex_gateway/internal/adapters/http/health"
	vgmhttp "seabridge/ms_odex_gateway/internal/adapters/http/vgm"
	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/infrastructure/config"
	"seabridge/ms_odex_gateway/internal/infrastructure/database"
	"seabridge/ms_odex_gateway/internal/infrastructure/http/server"
	"seabridge/ms_odex_gateway/internal/infrastructure/logger"
	"seabridge/ms_odex_gateway/internal/infrastructure/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Odex.BaseURL == "" {
		return fmt.Errorf("ODEX_BASE_URL is required")
	}

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info("Database connection established", "database", cfg.Database.Database)

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.NewRepository(pool, log)

	forwarder := odex.NewClient(odex.ClientConfig{
		Timeout:                 cfg.Odex.APITimeout,
		MaxBodySize:             cfg.Gateway.MaxBodySize,
		LogRequestBody:          cfg.Gateway.LogRequestBody,
		LogResponseBody:         cfg.Gateway.LogResponseBody,
		BreakerMaxFailures:      cfg.Odex.BreakerMaxFailures,
		BreakerFailureThreshold: cfg.Odex.BreakerFailureThreshold,
		BreakerCooldown:         cfg.Odex.BreakerCooldown,
		TokenTTL:                cfg.Odex.TokenTTL,
	}, log)

	carrierMetrics := metrics.NewCarrier()

	svc := gateway.NewService(store, forwarder, log, carrierMetrics, gateway.Config{
		DefaultPageSize: cfg.Gateway.DefaultPageSize,
		MaxPageSize:     cfg.Gateway.MaxPageSize,
	})

	srv, err := server.New(server.Options{
		Config: cfg,
		Logger: log,
		Handlers: server.Handlers{
			Vgm:     vgmhttp.NewHandler(svc, cfg.Odex.BaseURL, log),
			Form13:  form13http.NewHandler(svc, cfg.Odex.BaseURL, log),
			Auth:    authhttp.NewHandler(svc, cfg.Odex.BaseURL, log),
			ApiLogs: apiloghttp.NewHandler(svc, log),
			Health: healthhttp.NewHandler(healthhttp.Metadata{
				Service:     cfg.App.Name,
				Version:     cfg.App.Version,
				Environment: cfg.App.Environment,
			}, pool),
			Metrics: carrierMetrics.Handler(),
		},
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	log.Info("Starting HTTP server", "port", cfg.HTTP.Port, "odex_base_url", cfg.Odex.BaseURL)
	return srv.Run(ctx)
}
