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
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/sijms/go-ora/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jmanzanog/quote-ingestor/internal/application"
	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/cache"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/config"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata/finnhub"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata/polygon"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata/twelvedata"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata/yfinance"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/metrics"
	gormstore "github.com/jmanzanog/quote-ingestor/internal/infrastructure/persistence/gorm"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/persistence/memory"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/persistence/sqldb"
	httpHandler "github.com/jmanzanog/quote-ingestor/internal/interfaces/http"
)

// parseLevel maps debug|info|warn|error to a slog level; anything else is info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogger configures the default structured logger with source information.
// When file is set, output goes to stdout and a rotated log file.
func setupLogger(level, format, file string) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func precisionPolicy(cfg *config.Config) domain.PrecisionPolicy {
	return domain.DefaultPrecisionPolicy().WithPlaces(domain.AssetClassEquities, cfg.EquitiesPricePlaces)
}

// openStore connects the configured store and returns a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (domain.QuoteRepository, func() error, error) {
	switch cfg.DBDriver {
	case "postgres", "oracle":
		dialect, ok := sqldb.DialectFor(cfg.DBDriver)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := sqldb.Open(migrateCtx, dialect, cfg.DBDSN, sqldb.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		repo := sqldb.NewRepository(db)
		repo.SetPrecision(precisionPolicy(cfg))
		return repo, db.Close, nil

	case "sqlite", "mysql":
		db, err := gormstore.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get underlying connection: %w", err)
		}
		repo := gormstore.NewGormRepository(db)
		repo.SetPrecision(precisionPolicy(cfg))
		return repo, sqlDB.Close, nil

	case "memory":
		slog.Warn("Using in-memory store; records are lost on exit")
		return memory.NewQuoteRepository(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}
}

func loadSymbols(cfg *config.Config) (marketdata.SymbolTable, error) {
	if cfg.SymbolsFile == "" {
		return marketdata.DefaultSymbolTable(), nil
	}
	table, err := marketdata.LoadSymbolTable(cfg.SymbolsFile)
	if err != nil {
		return marketdata.SymbolTable{}, fmt.Errorf("failed to load symbols: %w", err)
	}
	return table, nil
}

func limitsFor(cfg *config.Config, provider string) marketdata.Limits {
	l := cfg.Limit(provider)
	return marketdata.NewLimits(l.MaxConcurrency, l.RatePerSec, l.Burst)
}

// buildJobs wires one adapter per asset class. Equities and commodities always
// come from Yahoo; stocks and forex follow the provider selection.
func buildJobs(cfg *config.Config, table marketdata.SymbolTable) ([]application.Job, *yfinance.Client) {
	yahoo := yfinance.NewClientWithBaseURL(cfg.YFinanceBaseURL, limitsFor(cfg, "yfinance"))

	var stocks marketdata.Adapter
	switch cfg.StockProvider {
	case "polygon":
		stocks = polygon.NewClient(cfg.PolygonAPIKey, limitsFor(cfg, "polygon"))
	default:
		stocks = finnhub.NewClient(cfg.FinnhubAPIKey, limitsFor(cfg, "finnhub"))
	}

	var forex marketdata.Adapter
	switch cfg.ForexProvider {
	case "yfinance":
		forex = yahoo
	default:
		forex = twelvedata.NewClient(cfg.TwelveDataAPIKey, limitsFor(cfg, "twelvedata"))
	}

	jobs := []application.Job{
		{Adapter: stocks, Specs: table.Stocks},
		{Adapter: forex, Specs: table.Forex},
		{Adapter: yahoo, Specs: table.Equities},
		{Adapter: yahoo, Specs: table.Commodities},
	}
	for _, job := range jobs {
		slog.Info("Configured ingestion job", "provider", job.Adapter.Name(), "symbols", len(job.Specs))
	}
	return jobs, yahoo
}

// buildHistoryCache returns nil when caching is disabled.
func buildHistoryCache(ctx context.Context, cfg *config.Config) (application.HistoryCache, func() error, error) {
	noop := func() error { return nil }
	if cfg.HistoryCacheTTL <= 0 {
		return nil, noop, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.HistoryCacheTTL), noop, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Using redis history cache", "addr", cfg.RedisAddr, "ttl", cfg.HistoryCacheTTL)
	return cache.NewRedisCache(client, cfg.HistoryCacheTTL), client.Close, nil
}

// buildServer creates and configures the HTTP server with all routes and handlers
func buildServer(cfg *config.Config, handler *httpHandler.Handler, metricsHandler http.Handler) *http.Server {
	router := gin.Default()
	router.Use(httpHandler.CORSMiddleware(cfg.CORSAllowedOrigin))
	httpHandler.SetupRoutes(router, handler, metricsHandler)

	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func buildScheduler(cfg *config.Config, runner application.CycleRunner) *application.Scheduler {
	hours := application.MarketHours{
		Location: cfg.MarketLocation,
		Open:     cfg.MarketOpen,
		Close:    cfg.MarketClose,
		Disabled: !cfg.MarketHoursGate,
	}
	return application.NewScheduler(runner, hours, cfg.PollInterval, cfg.StoreMaxFailedCycles)
}

// App wraps the application components for easier testing
type App struct {
	Server        *http.Server
	Scheduler     *application.Scheduler
	CancelContext context.CancelFunc
	Closers       []func() error
}

// Shutdown stops the scheduler, waits for the in-flight cycle, then closes
// the server and every store or cache connection.
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application...")

	var errs []error
	if a.Scheduler != nil {
		a.Scheduler.Stop()
		select {
		case <-a.Scheduler.Done():
		case <-ctx.Done():
			slog.Warn("Ingestion cycle did not drain in time, cancelling")
		}
	}
	a.CancelContext()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	for _, closeFn := range a.Closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// run contains the main application logic without os.Exit calls
// This makes it testeable
func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	_, logCloser, err := setupLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = logCloser.Close()
	}()
	if envErr != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	slog.Info("Store ready", "driver", cfg.DBDriver)

	table, err := loadSymbols(cfg)
	if err != nil {
		_ = closeStore()
		return err
	}

	historyCache, closeCache, err := buildHistoryCache(ctx, cfg)
	if err != nil {
		_ = closeStore()
		return fmt.Errorf("history cache initialization failed: %w", err)
	}

	jobs, yahoo := buildJobs(cfg, table)
	precision := precisionPolicy(cfg)
	m := metrics.New()

	ingestion := application.NewIngestionService(repo, domain.NewNormalizer(precision), jobs)
	ingestion.SetRecorder(m)
	history := application.NewHistoryService(yahoo, historyCache)
	assets := application.NewAssetService(repo)

	scheduler := buildScheduler(cfg, ingestion)
	server := buildServer(cfg, httpHandler.NewHandler(assets, history, ingestion), m.Handler())

	app := &App{
		Server:        server,
		Scheduler:     scheduler,
		CancelContext: cancel,
		Closers:       []func() error{closeCache, closeStore},
	}

	schedulerErrors := make(chan error, 1)
	go func() {
		if err := scheduler.Start(ctx); err != nil {
			schedulerErrors <- err
		}
	}()

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "host", cfg.ServerHost, "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	case err := <-schedulerErrors:
		runErr = fmt.Errorf("scheduler error: %w", err)
	case <-quit:
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown failed: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	slog.Info("Server exited gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
