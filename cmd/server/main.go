package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/Imaginary-Space/linear-stagehand-tests/config"
	_ "github.com/Imaginary-Space/linear-stagehand-tests/docs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/agent"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/database"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/handlers"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/jobs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/metrics"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/middleware"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/results"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/runs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/storage"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/sweepers"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/telemetry"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/tracker"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/verify"
)

// @title Linear Stagehand Tests API
// @version 1.0
// @description Verifies Linear ticket acceptance criteria against a live web application with a browser agent.
// @BasePath /
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Info().Int("concurrency", cfg.Queue.Concurrency).Msg("Starting verification service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	store, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	limits := ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		MaxRetries:        cfg.RateLimit.MaxRetries,
		InitialBackoffMs:  cfg.RateLimit.InitialBackoffMs,
		MaxBackoffMs:      cfg.RateLimit.MaxBackoffMs,
	}

	verifierOpts := []verify.Option{
		verify.WithStorage(store),
		verify.WithTimeout(cfg.Queue.RunTimeout),
	}
	deps := handlers.Deps{
		Trigger: tracker.Trigger{
			States: cfg.Webhook.TriggerStates,
			Labels: cfg.Webhook.TriggerLabels,
		},
		TargetURL: cfg.Target.URL,
		Logger:    logger,
	}
	var pruner jobs.HistoryPruner

	if cfg.Database.URL != "" {
		if err := database.Connect(ctx, database.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		if err := database.Migrate(ctx, database.Pool()); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
		hist := history.NewStore(database.Pool())
		verifierOpts = append(verifierOpts, verify.WithHistory(hist))
		deps.History = hist
		pruner = hist
		logger.Info().Msg("Database connected")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, run history disabled")
	}

	if cfg.Redis.URL != "" {
		rdb, err := results.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()

		cache := results.NewCache(rdb, cfg.Redis.ResultTTL)
		verifierOpts = append(verifierOpts, verify.WithCache(cache))
		deps.Results = cache
		logger.Info().Msg("Redis connected")
	} else {
		logger.Warn().Msg("REDIS_URL not set, result cache disabled")
	}

	if cfg.Linear.APIKey != "" {
		verifierOpts = append(verifierOpts, verify.WithCommenter(tracker.NewClient(cfg.Linear.APIURL, cfg.Linear.APIKey, limits)))
	} else {
		logger.Warn().Msg("LINEAR_API_KEY not set, ticket comments disabled")
	}

	agentClient := agent.NewClient(cfg.Agent.URL, cfg.Agent.Model, cfg.Agent.Timeout, limits)
	if err := agentClient.Ping(ctx); err != nil {
		logger.Warn().Err(err).Str("url", cfg.Agent.URL).Msg("Browser agent not reachable yet")
	}

	queue := taskqueue.New[*types.Result](
		cfg.Queue.Concurrency,
		taskqueue.WithObserver(metrics.NewQueueObserver()),
		taskqueue.WithBaseContext(ctx),
	)
	coordinator := runs.NewCoordinator(queue, runs.WithRetention(cfg.Queue.Retention))

	deps.Coordinator = coordinator
	breaker := agent.NewBreaker(agentClient, agent.BreakerConfig{
		MaxFailures:  cfg.Agent.BreakerFailures,
		ResetTimeout: cfg.Agent.BreakerReset,
	}, logger)
	deps.Work = verify.NewVerifier(breaker, logger, verifierOpts...)
	h := handlers.New(deps)

	runSweeper := sweepers.NewRunSweeper(coordinator, logger, cfg.Queue.SweepInterval)
	retention := jobs.NewRetentionManager(jobs.RetentionConfig{
		Enabled:      cfg.Retention.Enabled,
		Interval:     cfg.Retention.Interval,
		HistoryDays:  cfg.Retention.HistoryDays,
		ArtifactDays: cfg.Retention.ArtifactDays,
	}, pruner, store, logger)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: float64(cfg.RateLimit.WebhookRPS),
		BurstSize:         cfg.RateLimit.WebhookBurst,
	}))
	webhooks.Use(middleware.LinearWebhookMiddleware(middleware.WebhookConfig{
		Secret:         cfg.Webhook.Secret,
		MaxClockSkew:   cfg.Webhook.MaxClockSkew,
		DeliveryWindow: cfg.Webhook.DeliveryWindow,
		OnDuplicate:    func() { metrics.RecordWebhook("duplicate") },
		OnRejected:     func() { metrics.RecordWebhook("rejected") },
	}))
	{
		webhooks.POST("/linear", h.LinearWebhook)
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Server.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", h.HealthCheck)
		h.RegisterInternal(internal)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runSweeper.Start(gctx)
		return nil
	})
	retention.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		runSweeper.Stop()
		retention.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to flush telemetry")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
	}

	status := queue.Status()
	if status.RunningCount > 0 || status.QueuedCount > 0 {
		logger.Warn().
			Int("running", status.RunningCount).
			Int("queued", status.QueuedCount).
			Msg("Unfinished runs abandoned at shutdown")
	}
	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "linear-stagehand-tests").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
