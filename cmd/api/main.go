package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/radarprecios/radarprecios-backend/api/routes"
	"github.com/radarprecios/radarprecios-backend/internal/agendas"
	"github.com/radarprecios/radarprecios-backend/internal/auth"
	"github.com/radarprecios/radarprecios-backend/internal/checkins"
	"github.com/radarprecios/radarprecios-backend/internal/prices"
	"github.com/radarprecios/radarprecios-backend/internal/products"
	"github.com/radarprecios/radarprecios-backend/internal/users"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/instance"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
	"github.com/radarprecios/radarprecios-backend/pkg/migrate"
	"github.com/radarprecios/radarprecios-backend/pkg/redis"
	"github.com/radarprecios/radarprecios-backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency replay and login rate limiting disabled")
	}

	photos, err := storage.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap photo storage", err)
		os.Exit(1)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		logg.Error(ctx, "failed to resolve time zone", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workflow := metrics.NewWorkflow(registry)

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireService(ctx, logg, "auth", err)

	userService, err := users.NewService(users.ServiceParams{
		Repo:     userRepo,
		Tx:       dbClient,
		Password: cfg.Password,
		Logger:   logg,
	})
	requireService(ctx, logg, "users", err)

	priceService, err := prices.NewService(prices.ServiceParams{
		Repo:              prices.NewRepository(gormDB),
		Tx:                dbClient,
		Photos:            photos,
		Logger:            logg,
		Metrics:           workflow,
		DefaultCurrencyID: cfg.Ledger.DefaultCurrencyID,
	})
	requireService(ctx, logg, "prices", err)

	productService, err := products.NewService(products.NewRepository(gormDB), dbClient, logg)
	requireService(ctx, logg, "products", err)

	checkInService, err := checkins.NewService(checkins.ServiceParams{
		Repo:            checkins.NewRepository(gormDB),
		Tx:              dbClient,
		Logger:          logg,
		Metrics:         workflow,
		ConflictRetries: cfg.Ledger.CheckInConflictRetry,
	})
	requireService(ctx, logg, "checkins", err)

	agendaService, err := agendas.NewService(agendas.ServiceParams{
		Repo:     agendas.NewRepository(gormDB),
		Tx:       dbClient,
		Logger:   logg,
		Metrics:  workflow,
		Location: loc,
	})
	requireService(ctx, logg, "agendas", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  instance.ID(),
		"storage":   cfg.Storage.Driver,
		"time_zone": loc.String(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:       dbClient,
			Redis:    redisClient,
			Photos:   photos,
			HTTP:     metrics.NewHTTP(registry),
			Gatherer: registry,
		}, routes.Services{
			Auth:     authService,
			Users:    userService,
			Prices:   priceService,
			Products: productService,
			CheckIns: checkInService,
			Agendas:  agendaService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
