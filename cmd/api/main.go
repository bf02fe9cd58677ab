package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/api/rest"
	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
	"github.com/casabria/booking-security-backend/internal/infrastructure/crypto"
	"github.com/casabria/booking-security-backend/internal/infrastructure/database"
	"github.com/casabria/booking-security-backend/internal/infrastructure/telemetry"
	"github.com/casabria/booking-security-backend/internal/metrics"
	"github.com/casabria/booking-security-backend/internal/service/bookingguard"
	"github.com/casabria/booking-security-backend/internal/service/dataprotection"
	"github.com/casabria/booking-security-backend/internal/service/fraud"
	"github.com/casabria/booking-security-backend/internal/service/session"
	"github.com/casabria/booking-security-backend/internal/service/uploadguard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("setup logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	gateway, err := crypto.NewGateway(cfg.Security.EncryptionSecret)
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Redis backs the shared security state; without it every instance
	// would keep its own rate-limit and session view.
	redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store := cache.NewRedisStore(redisClient, logger)
	limiter := cache.NewRedisRateLimiter(redisClient, logger)
	csrfStore := cache.NewCSRFStore(store, cfg.Security.SessionDuration, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsRegistry := metrics.NewRegistry(promRegistry)

	auditRepo := database.NewAuditRepository(pool)
	var auditor audit.Logger = telemetry.NewAuditSink(logger, auditRepo)
	auditor = metrics.NewAuditObserver(auditor, metricsRegistry)

	users := database.NewUserRepository(pool, gateway)
	sessions := session.NewManager(
		session.NewStore(store, cfg.Security.SessionDuration),
		csrfStore,
		limiter,
		gateway,
		users,
		auditor,
		logger,
		cfg.Security.SessionDuration,
		cfg.Security.Login,
	)

	fraudEngine := fraud.NewEngine(cfg.Payment, cache.NewBlocklist(), auditor, logger)
	bookingEngine := bookingguard.NewEngine(cfg.Booking, auditor, logger)
	uploadGuard := uploadguard.NewGuard(cfg.Upload, auditor, logger)
	privacyLedger := dataprotection.NewLedger(
		cfg.Privacy,
		database.NewConsentRepository(pool),
		database.NewUserDataRepository(pool),
		gateway,
		auditor,
		logger,
	)

	pipeline := rest.NewPipeline(sessions, csrfStore, limiter, auditor, logger, cfg.Server.AllowedOrigins)
	handler := rest.NewHandler(cfg, pipeline, sessions, fraudEngine, bookingEngine, uploadGuard, privacyLedger, logger)
	server := rest.NewServer(cfg.Server, handler, logger)

	metricsServer := &http.Server{
		Addr:    ":9090",
		Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx := context.Background()
	_ = metricsServer.Shutdown(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}
