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

	"github.com/okian/flightrisk/internal/adapters/http/api"
	"github.com/okian/flightrisk/internal/adapters/http/swagger"
	"github.com/okian/flightrisk/internal/adapters/scorer/httpscorer"
	"github.com/okian/flightrisk/internal/adapters/source"
	"github.com/okian/flightrisk/internal/adapters/source/sqlite"
	"github.com/okian/flightrisk/internal/adapters/source/xlsx"
	app "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/app/engine"
	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/scoring"
	"github.com/okian/flightrisk/internal/seed"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "flightrisk exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	src, closeSource, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Warn(ctx, "closing record source failed", logger.Error(err))
		}
	}()

	svc := buildService(cfg, src, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// Compute the first view without waiting for a client to ask.
	if _, err := svc.Trigger(ctx, "startup"); err != nil {
		log.Warn(ctx, "startup analysis not queued", logger.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("source", cfg.SourceKind),
			logger.String("scorer", cfg.ScorerKind),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildSource opens the configured record source. The returned func
// releases it.
func buildSource(ctx context.Context, cfg *config.Config) (source.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.SourceKind {
	case config.SourceSQLite:
		store, err := sqlite.Open(cfg.SourcePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite source: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("prepare sqlite source: %w", err)
		}
		return store, store.Close, nil
	case config.SourceXLSX:
		return xlsx.New(cfg.SourcePath), noop, nil
	default:
		data, err := seed.Generate(ctx, seed.WithPeople(cfg.DemoPeople))
		if err != nil {
			return nil, nil, fmt.Errorf("seed memory source: %w", err)
		}
		return source.NewMemory(data), noop, nil
	}
}

// buildScorer returns the configured risk scorer.
func buildScorer(cfg *config.Config) scoring.Scorer {
	if cfg.ScorerKind == config.ScorerHTTP {
		var opts []httpscorer.Option
		if cfg.ScorerToken != "" {
			opts = append(opts, httpscorer.WithToken(cfg.ScorerToken))
		}
		return httpscorer.New(cfg.ScorerURL, opts...)
	}
	minLatency, maxLatency := cfg.ScoringLatency()
	return scoring.NewInMemoryScorer(scoring.WithLatencyRange(minLatency, maxLatency))
}

// buildService wires the engine and service from configuration.
func buildService(cfg *config.Config, src source.Source, log logger.Logger) *app.Service {
	eng := engine.New(buildScorer(cfg),
		engine.WithExtractor(features.NewExtractor(
			features.WithLookback(cfg.Lookback()),
			features.WithMinEvaluations(cfg.MinEvaluations),
			features.WithRecentScores(cfg.RecentScores),
		)),
		engine.WithScorerTimeout(cfg.ScorerTimeout()),
		engine.WithMaxConcurrency(cfg.MaxConcurrency),
		engine.WithLogger(log.Named("engine")),
	)

	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithSource(src),
		app.WithEngine(eng),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithRefreshInterval(cfg.RefreshInterval()),
	)
}

// newMux registers the API and docs routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
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

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
