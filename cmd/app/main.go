package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qarzdaftari/internal/config"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/adapter"
	pg "qarzdaftari/internal/infra/db/postgres"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/infra/metrics"
	pay "qarzdaftari/internal/infra/payment"
	red "qarzdaftari/internal/infra/redis"
	"qarzdaftari/internal/infra/sched"
	"qarzdaftari/internal/infra/web"
	"qarzdaftari/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	if err := pg.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional in-flight webhook claim) ----
	var locker pay.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient, cfg.Redis.LockTTL)
	} else {
		logger.Warn().Msg("redis.url not set; webhook in-flight claim disabled")
	}

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	paymeRepo := pg.NewPaymeRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(userRepo, paymentRepo, subRepo, tm, logger)

	pricing := pricingFromConfig(cfg.Pricing)

	// ---- Provider adapters (only configured ones are mounted) ----
	var providers []adapter.PaymentProvider
	if cfg.Payments.Click.SecretKey != "" {
		providers = append(providers, pay.NewClick(cfg.Payments.Click, userRepo, reconcileUC, locker, logger))
	}
	if cfg.Payments.Payme.SecretKey != "" {
		providers = append(providers, pay.NewPayme(cfg.Payments.Payme, userRepo, paymeRepo, reconcileUC, locker, logger))
	}
	if cfg.Payments.Uzum.SecretKey != "" {
		providers = append(providers, pay.NewUzum(cfg.Payments.Uzum, reconcileUC, locker, logger))
	}

	checkoutUC := usecase.NewCheckoutUseCase(userRepo, paymentRepo, subRepo, providers, pricing, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, 24*time.Hour)
	server := web.NewServer(checkoutUC, providers, auth, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Metrics ----
	metrics.MustRegister()
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, userRepo, logger)
	go func() { _ = worker.Run(ctx) }()

	logger.Info().Int("port", cfg.Server.Port).Msg("qarz daftari payments up")

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func pricingFromConfig(pc config.PricingConfig) model.Pricing {
	pricing := model.DefaultPricing()
	if pc.PlusMonthlyUZS > 0 {
		pricing.PlusMonthlyUZS = pc.PlusMonthlyUZS
	}
	if pc.ProMonthlyUZS > 0 {
		pricing.ProMonthlyUZS = pc.ProMonthlyUZS
	}
	return pricing
}
