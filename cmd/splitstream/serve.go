package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/core/services"
	httphandlers "splitstream/internal/handlers/http"
	"splitstream/internal/infrastructure/dispatch"
	"splitstream/internal/infrastructure/feed"
	"splitstream/internal/infrastructure/middleware"
	"splitstream/internal/infrastructure/monitoring"
	"splitstream/internal/infrastructure/repositories"
	"splitstream/pkg/config"
	"splitstream/pkg/logger"
	"splitstream/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and analytics dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	startTime := time.Now()

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	environment := "production"
	if cfg.Logging.Level == "debug" {
		environment = "development"
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return err
	}

	var (
		hub      *feed.Hub
		feedSink ports.AnalyticsSink
		liveFeed httphandlers.LiveFeed
	)
	if cfg.HasSink(config.SinkFeed) {
		hub = feed.NewHub(feed.Config{
			PingInterval:   cfg.Analytics.Feed.PingInterval,
			ReadTimeout:    cfg.Analytics.Feed.ReadTimeout,
			WriteTimeout:   cfg.Analytics.Feed.WriteTimeout,
			SendBuffer:     cfg.Analytics.Feed.SendBuffer,
			AllowedOrigins: cfg.Auth.AllowedOrigins,
		}, log.Named("feed"))
		feedSink = hub
		liveFeed = hub
	}

	targets := repoFactory.CreateAnalyticsTargets(feedSink)
	dispatcher := dispatch.New(dispatch.Config{
		QueueSize:       cfg.Analytics.QueueSize,
		DeliveryTimeout: cfg.Analytics.DeliveryTimeout,
		Retry:           cfg.Analytics.Retry,
		Breaker:         cfg.Analytics.Breaker,
	}, targets, log.Named("dispatch"), collector)

	sinkNames := make([]string, 0, len(targets))
	for _, t := range targets {
		sinkNames = append(sinkNames, t.Name)
	}
	log.Infow("analytics dispatcher started", "sinks", sinkNames, "queue_size", cfg.Analytics.QueueSize)

	sessionService := services.NewSessionService(
		services.SessionServiceConfig{
			Tiers: domain.TierCapacities{
				Free:    cfg.Tiers.Free,
				Trial:   cfg.Tiers.Trial,
				Premium: cfg.Tiers.Premium,
			},
			Recorder: services.RecorderConfig{
				ShareBaseURL:             cfg.Server.PublicURL,
				RecordAnonymousEvents:    cfg.Analytics.RecordAnonymousEvents,
				RecordAnonymousSummaries: cfg.Analytics.RecordAnonymousSummaries,
			},
		},
		dispatcher,
		repoFactory.CreateFavoritesStore(),
		collector,
		log.Named("session"),
	)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	checker := monitoring.NewHealthChecker()
	repoFactory.RegisterHealthChecks(checker)
	checker.AddQueueCheck("analytics_queue", dispatcher.Pending, cfg.Analytics.QueueSize)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.RequestLogger(logger.NewContextLogger(zapLogger)),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	httphandlers.NewHealthHandler(checker, startTime).SetupRoutes(router)

	api := router.Group("/api/v1")
	api.Use(middleware.IdentityMiddleware(authService))
	httphandlers.NewSessionHandler(sessionService, middleware.ContextIdentity{}, liveFeed).
		SetupRoutes(api, middleware.NewWebSocketRateLimitMiddleware(cfg))

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		log.Infow("Prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Split-Stream server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("Server failed", "error", runErr)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Split-Stream server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Ending sessions enqueues their summaries, so it must happen before the
	// dispatcher drains.
	ended := sessionService.EndAll(shutdownCtx)
	log.Infow("closed open sessions", "count", ended)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Analytics.CloseTimeout)
	defer drainCancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warnw("analytics queue not fully drained", "error", err)
	}

	if hub != nil {
		hub.Close()
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("Split-Stream server stopped")
	return runErr
}
