package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bryanwahyu/wildlife-dashboard/internal/application"
	appdetections "github.com/bryanwahyu/wildlife-dashboard/internal/application/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/config"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/infra/assets/cloudinary"
	rediscache "github.com/bryanwahyu/wildlife-dashboard/internal/infra/cache/redis"
	mysqlp "github.com/bryanwahyu/wildlife-dashboard/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/wildlife-dashboard/internal/infra/db/postgres"
	"github.com/bryanwahyu/wildlife-dashboard/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/wildlife-dashboard/internal/infra/storage"
	"github.com/bryanwahyu/wildlife-dashboard/internal/middleware"
)

func main() {
	logger := newLogger(os.Stderr)
	slog.SetDefault(logger)

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			for _, p := range cfgErr.Problems {
				logger.Error("invalid configuration", "problem", p)
			}
		}
		logger.Error("config load error", "path", path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	// init asset source
	source, closeSource, err := newAssetSource(ctx, cfg, checkers)
	if err != nil {
		logger.Error("asset source init error", "type", cfg.Source.Type, "error", err)
		os.Exit(1)
	}
	defer closeSource()

	metrics := middleware.NewMetrics()

	// init record cache
	cacheOpts := []appdetections.CacheOption{
		appdetections.WithClock(application.SystemClock{}),
		appdetections.WithLogger(logger),
		appdetections.WithRecorder(metrics),
	}
	if cfg.Cache.Backend == config.CacheRedis {
		store, err := rediscache.New(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			logger.Error("redis init error", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		checkers["redis"] = store
		cacheOpts = append(cacheOpts, appdetections.WithStore(store))
	}
	cache := appdetections.NewRecordCache(source, appdetections.CacheConfig{
		Folder:  cfg.Source.Folder,
		Limit:   cfg.Source.MaxResults,
		TTL:     cfg.CacheTTL(),
		Timeout: cfg.Source.Timeout,
	}, cacheOpts...)

	// init service
	svc := &appdetections.Service{
		Cache:      cache,
		Categories: cfg.CategoryMap(),
		PageSize:   cfg.Gallery.PageSize,
		Logger:     logger,
		Metrics:    metrics,
	}

	sessions, err := middleware.NewSessionManager(cfg.Auth.Username, cfg.Auth.Password, []byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
	if err != nil {
		logger.Error("session init error", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.SessionSecret == "" {
		logger.Warn("auth.sessionSecret not set, sessions will not survive a restart")
	}
	sessions.Secure = os.Getenv("COOKIE_SECURE") == "true"

	limiter := middleware.NewRateLimiter(cfg.Auth.LoginRatePerMinute)
	limiter.TrustProxy = cfg.Server.TrustProxyHeaders
	defer limiter.Stop()

	// init router
	handler := httpserver.NewRouter(httpserver.Deps{
		Service:     svc,
		Sessions:    sessions,
		Limiter:     limiter,
		Metrics:     metrics,
		Checkers:    checkers,
		Logger:      logger,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Columns:     cfg.Gallery.Columns,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	// run server
	go func() {
		logger.Info("server listening", "addr", addr, "source", cfg.Source.Type, "folder", cfg.Source.Folder, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newLogger: JSON by default, text when LOG_FORMAT=text. LOG_LEVEL=debug enables skip details.
func newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		opts.Level = slog.LevelDebug
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newAssetSource builds the configured backend and registers its health check.
func newAssetSource(ctx context.Context, cfg *config.Config, checkers map[string]middleware.HealthChecker) (domain.AssetSource, func(), error) {
	noop := func() {}
	switch cfg.Source.Type {
	case config.SourceCloudinary:
		client := cloudinary.NewClient(cloudinary.Config{
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
			BaseURL:   cfg.Cloudinary.BaseURL,
			Timeout:   cfg.Source.Timeout,
		})
		checkers["cloudinary"] = client
		return client, noop, nil

	case config.SourceMinio:
		store, err := minioStore.New(ctx, minioStore.Options{
			Endpoint:      cfg.Minio.Endpoint,
			Region:        cfg.Minio.Region,
			Bucket:        cfg.Minio.BucketName,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.Minio.PublicBaseURL,
			PresignExpiry: cfg.Minio.PresignExpiry,
		})
		if err != nil {
			return nil, nil, err
		}
		checkers["minio"] = store
		return store, noop, nil

	case config.SourceMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		repo := mysqlp.NewAssetRepository(db)
		checkers["mysql"] = repo
		return repo, func() { db.Close() }, nil

	case config.SourcePostgres:
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		repo := postgresp.NewAssetRepository(db)
		checkers["postgres"] = repo
		return repo, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown source type %q", config.ErrConfiguration, cfg.Source.Type)
}
