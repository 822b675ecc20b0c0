package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/account"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/cache"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/catalog"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/comments"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/detail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/mail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/media"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/profile"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/storage"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/tracing"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/upload"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/web"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/webhook"
)

// @title           StreamFlow Web API
// @version         1.0
// @description     JSON endpoints of the StreamFlow web front end.
// @BasePath        /

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	bootLogger := logging.New(os.Stderr, "info", false)
	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		bootLogger.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		closer, err := tracing.Init(cfg.Tracing)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
		logger.Info("Jaeger tracing enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis (sessions, cache, progress, rate counters)
	rc, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rc.Close()

	var (
		readCache     *cache.Cache
		durationCache media.DurationCache
	)
	if cfg.Cache.Enabled {
		readCache = rc
		durationCache = rc
	}

	// Initialize backend client
	client, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	if err != nil {
		logger.Fatalf("Failed to create backend client: %v", err)
	}

	// Initialize thumbnail storage
	var objects storage.ObjectStore
	if cfg.Storage.Enabled {
		stor, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		objects = stor
	}

	// Initialize event publishers
	var sinks events.Multi
	if cfg.Queue.Enabled {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Queue)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer amqpPublisher.Close()
		sinks = append(sinks, amqpPublisher)
	}
	if cfg.Webhook.Enabled {
		hooks := webhook.NewService(cfg.Webhook, logger)
		go hooks.Run(ctx)
		sinks = append(sinks, hooks)
		logger.Infof("Webhook delivery enabled for %d endpoints", len(cfg.Webhook.Endpoints))
	}

	var publisher events.Publisher = events.Nop{}
	if len(sinks) > 0 {
		publisher = sinks
	}

	sessions := session.NewManager(
		session.NewStore(rc.Client(), cfg.Session.TTL),
		cfg.Session.Secret,
		cfg.Session.CookieName,
		cfg.Session.TTL,
		cfg.Session.SecureCookie,
	)

	catalogSvc := catalog.NewService(client, readCache, cfg.Cache.CatalogTTL, cfg.Cache.VideoTTL, logger)

	uploads := upload.NewService(client, logger,
		upload.WithProgressStore(rc, cfg.Upload.ProgressTTL),
		upload.WithListingInvalidator(catalogSvc),
		upload.WithPublisher(publisher),
		upload.WithMaxDescriptionLength(cfg.Upload.MaxDescriptionLength),
	)

	accounts := account.NewService(
		client,
		mail.New(cfg.Email, logger),
		publisher,
		cfg.Admin,
		cfg.Session.Secret,
		cfg.Session.ResetTTL,
		cfg.Server.BaseURL,
		logger,
	).WithTokenLedger(rc)

	srv, err := web.NewServer(web.Deps{
		Sessions:   sessions,
		Catalog:    catalogSvc,
		Detail:     detail.NewResolver(catalogSvc, cfg.Server.BaseURL, logger),
		Uploads:    uploads,
		Accounts:   accounts,
		Profiles:   profile.NewService(catalogSvc, client, publisher, logger),
		Prober:     media.NewProber(cfg.Media.FFprobePath, cfg.Media.ProbeTimeout, client, durationCache, cfg.Cache.DurationTTL, logger),
		Thumbnails: storage.NewThumbnails(objects, client, logger),
		Streams:    client,
		Comments:   comments.NewRegistry(),
		Logger:     logger,
	}, web.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Upload.MaxUploadBytes,
		AttemptLimiter: rc,
		HealthChecks: map[string]web.HealthCheck{
			"redis": rc.Ping,
		},
	})
	if err != nil {
		logger.Fatalf("Failed to build web server: %v", err)
	}
	go srv.Limiter().Cleanup(ctx)

	// Start metrics server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Run(ctx, cfg.Server.ShutdownTimeout); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
