package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/versus/internal/adapters/enrich"
	"github.com/okian/versus/internal/adapters/http/api"
	"github.com/okian/versus/internal/adapters/http/site"
	"github.com/okian/versus/internal/adapters/http/swagger"
	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/config"
	"github.com/okian/versus/internal/domain/sampler"
	"github.com/okian/versus/internal/seed"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
	enrichCacheSize           = 4096
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithFile(cfg.LogFile)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := service.New(serviceOptions(cfg, log)...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	if cfg.SeedFile != "" {
		if err := seedProfiles(ctx, svc, cfg.SeedFile); err != nil {
			log.Error(ctx, "seeding failed", logger.String("seed_file", cfg.SeedFile), logger.Error(err))
			return
		}
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg.MaxLeaderboardLimit),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config, log logger.Logger) []service.Option {
	opts := []service.Option{
		service.WithLogger(log),
		service.WithStoreDriver(cfg.StoreDriver, cfg.SQLitePath),
		service.WithKFactor(cfg.KFactor),
		service.WithInitialRating(cfg.InitialRating),
		service.WithSamplerConfig(sampler.Config{
			TopFraction:        cfg.TopFraction,
			TopPickProbability: cfg.TopPickProbability,
		}),
		service.WithExclusionWindow(cfg.ExclusionWindow),
		service.WithPoolSampleSize(cfg.PoolSampleSize),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		service.WithMaxPageSize(cfg.MaxPageSize),
		service.WithSessionTTL(cfg.SessionTTL()),
		service.WithSessionCapacity(cfg.SessionCapacity),
		service.WithVoteDedupeSize(cfg.VoteDedupeSize),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
	}
	if cfg.EnrichBaseURL != "" {
		opts = append(opts, service.WithEnricher(enrich.NewClient(cfg.EnrichBaseURL,
			enrich.WithAPIKey(cfg.EnrichAPIKey),
			enrich.WithRate(cfg.EnrichRatePerSec),
			enrich.WithCache(enrichCacheSize, cfg.EnrichCacheTTL()),
			enrich.WithTimeout(cfg.EnrichTimeout()),
		)))
	}
	return opts
}

// newMux registers the docs, the JSON API and the voting page.
func newMux(ctx context.Context, svc *service.Service, maxLeaderboardLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, maxLeaderboardLimit).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

func seedProfiles(ctx context.Context, svc *service.Service, path string) error {
	profiles, err := seed.Load(path)
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, svc, profiles)
	return err
}

// startSystemMetricsUpdater updates runtime metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
