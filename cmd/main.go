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

	"github.com/okian/ecoledger/internal/adapters/http/api"
	"github.com/okian/ecoledger/internal/adapters/http/swagger"
	"github.com/okian/ecoledger/internal/adapters/journal"
	"github.com/okian/ecoledger/internal/adapters/mint"
	service "github.com/okian/ecoledger/internal/app"
	"github.com/okian/ecoledger/internal/config"
	"github.com/okian/ecoledger/internal/domain/scoring"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("ecoledger: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
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
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc),
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

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
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

// newService translates configuration into service options, opening the
// journal and the mint gateway when they are configured.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	table := scoring.New(
		scoring.WithMultipliers(cfg.ActionMultipliers),
		scoring.WithDefaultMultiplier(cfg.DefaultMultiplier),
	)
	opts := []service.Option{
		service.WithLogger(log),
		service.WithScoringTable(table),
		service.WithShardCount(cfg.ShardCount),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
		service.WithMintTimeout(time.Duration(cfg.Mint.TimeoutMS) * time.Millisecond),
		service.WithWorkerCount(cfg.Mint.WorkerCount),
		service.WithQueueSize(cfg.Mint.QueueSize),
	}

	mintOpts, err := mintOptions(cfg.Mint)
	if err != nil {
		return nil, err
	}
	if mintOpts != nil {
		opts = append(opts, mintOpts)
		log.Info(ctx, "minting enabled", logger.String("engine_url", cfg.Mint.EngineURL), logger.Int64("chain_id", cfg.Mint.ChainID))
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, service.WithJournal(j))
		log.Info(ctx, "journal enabled", logger.String("path", cfg.JournalPath))
	}

	return service.New(opts...), nil
}

// mintOptions returns nil when no engine is configured.
func mintOptions(mc config.MintConfig) (service.Option, error) {
	if mc.EngineURL == "" {
		return nil, nil
	}
	planner, err := mint.NewPlanner(mc.ChainID, mc.EcoPointsContract, mc.BadgeContract, mc.PointsThreshold)
	if err != nil {
		return nil, fmt.Errorf("mint planner: %w", err)
	}
	engineOpts := []mint.Option{mint.WithRateLimit(mc.RateLimitPerSec)}
	if mc.EnginePath != "" {
		engineOpts = append(engineOpts, mint.WithPath(mc.EnginePath))
	}
	if mc.AccessToken != "" {
		engineOpts = append(engineOpts, mint.WithAccessToken(mc.AccessToken))
	}
	gateway, err := mint.NewEngineClient(mc.EngineURL, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("mint engine: %w", err)
	}
	return service.WithMinting(planner, gateway), nil
}

// newHandler mounts the API and the docs on one router.
func newHandler(ctx context.Context, svc *service.Service) http.Handler {
	r := api.NewRouter()
	api.NewServer(svc, svc).Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater periodically refreshes runtime metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

// startServiceMetricsUpdater periodically refreshes ledger and queue gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

// updateServiceMetrics pushes gauges GetStats does not set itself.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok && stats["minting"] == true {
		metrics.UpdateWorkerCount(workerCount)
	}
}
