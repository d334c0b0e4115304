package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/maisonnoire/trufflehouse-backend/api"
	"github.com/maisonnoire/trufflehouse-backend/api/routes"
	"github.com/maisonnoire/trufflehouse-backend/internal/assets"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/catalog"
	"github.com/maisonnoire/trufflehouse-backend/internal/ledger"
	"github.com/maisonnoire/trufflehouse-backend/internal/passport"
	"github.com/maisonnoire/trufflehouse-backend/internal/serial"
	"github.com/maisonnoire/trufflehouse-backend/internal/users"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/metrics"
	"github.com/maisonnoire/trufflehouse-backend/pkg/migrate"
	pkgredis "github.com/maisonnoire/trufflehouse-backend/pkg/redis"
)

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

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = pkgredis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	inventoryMetrics := metrics.NewInventoryMetrics(registry)

	renderer, err := assets.NewRenderer(cfg.Assets, cfg.App.PassportBaseURL(), logg, inventoryMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build asset renderer", err)
		os.Exit(1)
	}

	auditRecorder, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build audit recorder", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to build ledger service", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(dbClient, catalogRepo, auditRecorder, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog service", err)
		os.Exit(1)
	}

	itemRepo := serial.NewRepository(dbClient.DB())
	engine, err := serial.NewEngine(dbClient, itemRepo, catalogRepo, ledgerService, auditRecorder, renderer, logg, inventoryMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build serialization engine", err)
		os.Exit(1)
	}

	resolver, err := passport.NewResolver(itemRepo, auditRecorder, cfg.Assets, cfg.Passport, logg, inventoryMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build passport resolver", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build user service", err)
		os.Exit(1)
	}
	if err := userService.SeedAdmin(context.Background(), cfg.Seed); err != nil {
		logg.Error(context.Background(), "failed to seed admin account", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Cfg:              cfg,
		Logg:             logg,
		DB:               dbClient,
		Redis:            redisClient,
		Registry:         registry,
		UserService:      userService,
		CatalogService:   catalogService,
		Engine:           engine,
		AuditRecorder:    auditRecorder,
		PassportResolver: resolver,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := api.NewServer(cfg, handler)
	server.Addr = ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		if err := api.Shutdown(server, 30*time.Second); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
