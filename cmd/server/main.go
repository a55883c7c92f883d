// Command server starts the brand-visibility HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brandlens/brandlens/internal/adapter/ai"
	"github.com/brandlens/brandlens/internal/adapter/httpserver"
	"github.com/brandlens/brandlens/internal/adapter/observability"
	"github.com/brandlens/brandlens/internal/adapter/repo/postgres"
	"github.com/brandlens/brandlens/internal/app"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/service/mentions"
	"github.com/brandlens/brandlens/internal/service/ratelimiter"
	"github.com/brandlens/brandlens/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url invalid", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// Repositories
	queryRepo := postgres.NewQueryRepo(pool)
	runRepo := postgres.NewRunRepo(pool)
	brandRepo := postgres.NewBrandRepo(pool)
	mentionRepo := postgres.NewMentionRepo(pool)
	brandListRepo := postgres.NewBrandListRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	tokenRepo := postgres.NewTokenRepo(pool)
	credRepo := postgres.NewCredentialRepo(pool, cfg.CredentialMasterKey)
	analyticsRepo := postgres.NewAnalyticsRepo(pool)

	limiter := ratelimiter.NewRedisLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow, logger)

	categoryRules, err := config.LoadCategoryRules(cfg.CategoryConfigPath)
	if err != nil {
		slog.Error("category config invalid", slog.Any("error", err))
		os.Exit(1)
	}

	fanoutSvc := usecase.NewFanOutService(usecase.FanOutDeps{
		Queries:          queryRepo,
		Runs:             runRepo,
		Brands:           brandRepo,
		Mentions:         mentionRepo,
		BrandLists:       brandListRepo,
		Creds:            credRepo,
		Quota:            userRepo,
		Limiter:          limiter,
		Providers:        ai.NewRegistry(cfg),
		Extractor:        mentions.NewExtractor(cfg.MaxResponseRunes),
		PlatformKeys:     cfg.PlatformKeys(),
		MaxResponseRunes: cfg.MaxResponseRunes,
		Prod:             cfg.IsProd(),
	})
	analyticsSvc := usecase.NewAnalyticsService(analyticsRepo, categoryRules)

	srv := &httpserver.Server{
		FanOut:          fanoutSvc,
		Analytics:       analyticsSvc,
		BrandLists:      brandListRepo,
		MaxRequestBytes: cfg.MaxRequestBytes,
		Probes: map[string]httpserver.Probe{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	handler := app.BuildRouter(cfg, srv, tokenRepo)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("env", cfg.AppEnv))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
