package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/api"
	"github.com/inkwell/blog/internal/auth"
	"github.com/inkwell/blog/internal/cache"
	"github.com/inkwell/blog/internal/db"
	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/notify"
	"github.com/inkwell/blog/internal/service"
	"github.com/inkwell/blog/internal/storage/inmemory"
	"github.com/inkwell/blog/pkg/config"
	"github.com/inkwell/blog/pkg/logging"
	"github.com/inkwell/blog/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting blog API server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	metrics, err := telemetry.NewHTTPMetrics()
	if err != nil {
		logger.Fatal("Failed to create request metrics", zap.Error(err))
	}

	repos, storeHealth, closeStore, err := openRepositories(cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeStore()

	tokenCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer tokenCache.Close()

	// a disabled cache is a nil *cache.Cache and must stay a nil interface
	var tokens service.TokenCache
	if tokenCache != nil {
		tokens = tokenCache
	}

	images, err := files.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
	if err != nil {
		logger.Fatal("Failed to prepare upload storage", zap.Error(err))
	}

	mailer, err := notify.NewMailer(&cfg.Mail)
	if err != nil {
		logger.Fatal("Failed to create mailer", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(mailer, cfg.Mail.AppName, cfg.Auth.VerificationCodeTTL, cfg.Mail.SendTimeout)

	services := service.New(service.Options{
		Repos:                repos,
		Images:               images,
		Notifier:             dispatcher,
		Tokens:               tokens,
		Hasher:               auth.NewHasher(cfg.Auth.BcryptCost),
		RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		VerificationCodeTTL:  cfg.Auth.VerificationCodeTTL,
	})

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	api.NewRouter(api.Options{
		Services:           services,
		Files:              images.FS(),
		Metrics:            metrics,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Health: func(ctx context.Context) error {
			if err := storeHealth(ctx); err != nil {
				return err
			}
			if tokenCache == nil {
				return nil
			}
			return tokenCache.Health(ctx)
		},
	}).SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server starting", zap.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	// Let in-flight verification mails finish
	dispatcher.Wait()

	logger.Info("Server exited")
}

// openRepositories connects the configured storage backend
func openRepositories(cfg *config.Config) (service.Repositories, func(context.Context) error, func(), error) {
	if cfg.Database.Driver == "memory" {
		logging.GetLogger().Warn("Using in-memory storage; data is lost on restart")
		store := inmemory.New()
		return service.Repositories{
			Users:      store.Users(),
			Tokens:     store.Tokens(),
			Categories: store.Categories(),
			Posts:      store.Posts(),
			Comments:   store.Comments(),
		}, func(context.Context) error { return nil }, func() {}, nil
	}

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return service.Repositories{}, nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(context.Background()); err != nil {
			_ = database.Close()
			return service.Repositories{}, nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	repo := db.NewRepository(database.DB)
	closeDB := func() {
		if err := database.Close(); err != nil {
			logging.GetLogger().Error("Failed to close database", zap.Error(err))
		}
	}
	return service.Repositories{
		Users:      db.NewUserRepository(repo),
		Tokens:     db.NewTokenRepository(repo),
		Categories: db.NewCategoryRepository(repo),
		Posts:      db.NewPostRepository(repo),
		Comments:   db.NewCommentRepository(repo),
	}, database.Health, closeDB, nil
}
