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

	"github.com/okian/riskwatch/internal/adapters/http/api"
	"github.com/okian/riskwatch/internal/adapters/http/site"
	"github.com/okian/riskwatch/internal/adapters/http/swagger"
	"github.com/okian/riskwatch/internal/adapters/repository"
	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/config"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/risk"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/internal/domain/summary"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

// version is reported by /health.
const version = "1.0.0"

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
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be initialised yet.
		_, _ = os.Stderr.WriteString("riskwatch: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat))); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return runErr
}

// newService loads the models, opens the stores and builds the service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	models, err := scoring.Load(ctx, cfg.ModelPath, log.Named("scoring"))
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	engineOpts := []risk.Option{
		risk.WithConfidence(cfg.Confidence7Day, cfg.Confidence30Day),
		risk.WithAccountAgeDays(cfg.AccountAgeDays),
	}
	// A model file carries its own version.
	if !models.Loaded {
		engineOpts = append(engineOpts, risk.WithModelVersion(cfg.ModelVersion))
	}
	engine := risk.New(models, engineOpts...)

	var seed []model.Profile
	if cfg.DemoData {
		if seed, err = repository.DemoProfiles(); err != nil {
			return nil, err
		}
	}

	store, err := repository.OpenAssessmentStore(ctx, cfg.StoreDriver, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open assessment store: %w", err)
	}

	return service.New(engine,
		service.WithLogger(log.Named("service")),
		service.WithProfileStore(repository.NewInMemoryProfileStore(seed...)),
		service.WithAssessmentStore(store),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxBatchSize(cfg.MaxBatchSize),
		service.WithMaxHistoryLimit(cfg.MaxHistoryLimit),
		service.WithPerformance(summary.Performance{
			SevenDayAccuracy:  cfg.Accuracy7Day,
			ThirtyDayAccuracy: cfg.Accuracy30Day,
			TargetAccuracy:    cfg.TargetAccuracy,
		}),
	), nil
}

// newHandler registers every route and wraps the mux with CORS.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithVersion(version)).Register(ctx, mux)
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	return api.CORS(cfg.AllowedOrigins())(mux)
}

// startSystemMetricsUpdater periodically refreshes runtime metrics.
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

// startServiceMetricsUpdater periodically refreshes queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the queue and worker gauges as a side effect.
			_ = svc.GetStats(ctx)
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
