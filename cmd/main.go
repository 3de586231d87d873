package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fairway/internal/adapters/cache"
	"github.com/okian/fairway/internal/adapters/http/api"
	"github.com/okian/fairway/internal/adapters/repository"
	app "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/catalog/seed"
	"github.com/okian/fairway/internal/config"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

const (
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "fairway exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled, then drains ingestion.
func run(ctx context.Context, cfg *config.Config) error {
	if cfg.LogFormat != "" && cfg.LogFormat != "text" {
		if err := logger.InitWith(logger.Options{Format: cfg.LogFormat}); err != nil {
			return err
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	handler, err := a.handler(ctx)
	if err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%w: %w", api.ErrServe, err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	a.svc.Stop(shutdownCtx)

	log.Info(ctx, "server stopped")
	return nil
}

// application holds the wired components of one server process.
type application struct {
	cfg   *config.Config
	store *repository.GormStore
	cache cache.ReviewCache
	svc   *app.Service
}

// newApplication opens the store, optionally seeds it, connects the review
// cache and starts the service.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := logger.Get()

	db, err := repository.Open(cfg.Store())
	if err != nil {
		return nil, err
	}
	store := repository.NewGormStore(db, repository.WithReviewsPerItem(cfg.ReviewsPerItem))
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if cfg.SeedOnStart {
		report, err := seed.Load(ctx, store, seed.Options{Years: cfg.SeedYears})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		log.Info(ctx, "catalog seeded",
			logger.Int("clubs_added", report.ClubsAdded),
			logger.Int("clubs_skipped", report.ClubsSkipped),
			logger.Int("reviews_added", report.ReviewsAdded),
		)
	}

	var reviewCache cache.ReviewCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisReviewCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cache.WithTTL(cfg.ReviewCacheTTL))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		reviewCache = rc
		log.Info(ctx, "review cache enabled", logger.String("redis_addr", cfg.RedisAddr))
	}

	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithWeights(cfg.Weights()),
		app.WithMinEvidence(cfg.MinEvidence),
		app.WithCandidateLimit(cfg.CandidateLimit),
		app.WithFetchConcurrency(cfg.FetchConcurrency),
		app.WithReviewCache(reviewCache),
		app.WithResilience(cfg.Resilience()),
	)
	if err := svc.Start(ctx); err != nil {
		_ = reviewCache.Close()
		_ = store.Close()
		return nil, err
	}

	return &application{cfg: cfg, store: store, cache: reviewCache, svc: svc}, nil
}

// handler builds the HTTP API over the service.
func (a *application) handler(ctx context.Context) (http.Handler, error) {
	opts := []api.Option{
		api.WithRateLimit(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow),
	}
	if a.cfg.AdminPasswordHash != "" {
		opts = append(opts, api.WithBasicAuth(a.cfg.AdminUsername, a.cfg.AdminPasswordHash))
	}
	server, err := api.NewServer(a.svc, opts...)
	if err != nil {
		return nil, err
	}
	return server.Handler(ctx), nil
}

func (a *application) close(ctx context.Context) {
	a.svc.Stop(ctx)
	if err := a.cache.Close(); err != nil {
		logger.Get().Warn(ctx, "review cache close failed", logger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Get().Warn(ctx, "store close failed", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	started := time.Now()
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics(started)
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics(started time.Time) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	metrics.UpdateUptime(time.Since(started).Seconds())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes catalog and queue gauges.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	// Stats also refreshes the catalog count gauges.
	stats, err := svc.Stats(ctx)
	if err != nil {
		logger.Get().Debug(ctx, "stats refresh failed", logger.Error(err))
		return
	}
	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateQueueCapacity(stats.QueueCapacity)
	if stats.QueueCapacity > 0 {
		metrics.UpdateQueueUtilization(float64(stats.QueueLength) / float64(stats.QueueCapacity))
	}
}
