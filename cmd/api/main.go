package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/josh-kwaku/retail-bank/internal/config"
	"github.com/josh-kwaku/retail-bank/internal/handler"
	"github.com/josh-kwaku/retail-bank/internal/idempotency"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/logging"
	"github.com/josh-kwaku/retail-bank/internal/metrics"
	"github.com/josh-kwaku/retail-bank/internal/pricing"
	"github.com/josh-kwaku/retail-bank/internal/repository"
	"github.com/josh-kwaku/retail-bank/internal/server"
	"github.com/josh-kwaku/retail-bank/internal/service"
	"github.com/josh-kwaku/retail-bank/internal/service/transfer"
	"github.com/josh-kwaku/retail-bank/internal/simclock"
	"github.com/josh-kwaku/retail-bank/internal/simulation"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("retail-bank", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.NeedsDatabase() {
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
			MaxOpenConns:     cfg.DBMaxOpenConns,
			MaxIdleConns:     cfg.DBMaxIdleConns,
			ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
			ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clock := simclock.New(simclock.RealSource{}, cfg.TimeScale, cfg.SimulationStart)
	schedule := pricing.NewSchedule(
		cfg.TransferFeePercent,
		cfg.DepositFeePercent,
		cfg.AnnualInterestRatePercentage,
		cfg.LoanPeriodMonths,
	)

	var (
		store  ledger.Store
		states transfer.StateStore
	)
	switch cfg.LedgerDriver {
	case config.DriverPostgres:
		store = ledger.NewPostgresStore(db, clock.Now)
		states = repository.NewExternalTransferRepository(db)
	default:
		store = ledger.NewMemoryStore(clock.Now)
		states = transfer.NewMemoryStateStore()
	}
	if err := store.InitialiseInternalAccounts(ctx); err != nil {
		slog.Error("failed to initialise internal accounts", "error", err)
		os.Exit(1)
	}

	cache, sweepable, err := newIdempotencyCache(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to set up idempotency cache", "error", err)
		os.Exit(1)
	}
	guard := idempotency.NewGuard(cache, cfg.IdempotencyTTL)

	httpClient, err := interbank.NewHTTPClient(cfg.Interbank.ClientCertPath, cfg.Interbank.ClientKeyPath, 0)
	if err != nil {
		slog.Error("failed to build interbank client", "error", err)
		os.Exit(1)
	}
	notifier := interbank.NewNotifier(cfg.InterbankOptions(), httpClient, m)

	accounts := service.NewAccountService(store)
	loans := service.NewLoanService(store, schedule)
	transfers := transfer.NewService(store, states, guard, notifier, clock, schedule, m)

	runner := simulation.NewRunner(store, transfers, loans, clock, m, logger, cfg.CycleLength())
	go runner.Start(ctx)

	if sweepable != nil {
		sweeper := idempotency.NewSweeper(sweepable, m, logger, sweepInterval)
		go sweeper.Start(ctx)
	}

	health := handler.NewHealthHandler(nil)
	if db != nil {
		health = handler.NewHealthHandler(db)
	}

	router := server.NewRouter(server.Handlers{
		Health:         health,
		Accounts:       handler.NewAccountHandler(accounts),
		Loans:          handler.NewLoanHandler(loans),
		Transfers:      handler.NewTransferHandler(transfers),
		Reports:        handler.NewReportHandler(transfers),
		Simulation:     handler.NewSimulationHandler(clock),
		Reconciliation: handler.NewReconciliationHandler(transfers),
	}, cfg.AdminJWTSecret, reg)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started",
			"addr", addr,
			"ledger", cfg.LedgerDriver,
			"idempotency", cfg.IdempotencyBackend,
			"annual_rate_pct", schedule.AnnualRate().String(),
			"loan_months", schedule.LoanMonths(),
			"simulation_start", clock.SimStart(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

type expiringCache interface {
	idempotency.Cache
	CleanExpired(ctx context.Context) (int64, error)
}

// newIdempotencyCache returns the configured backend and, for backends
// that do not expire keys themselves, the same cache for the sweeper.
func newIdempotencyCache(ctx context.Context, cfg *config.Config, db *sql.DB) (idempotency.Cache, expiringCache, error) {
	switch cfg.IdempotencyBackend {
	case config.BackendRedis:
		client, err := idempotency.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("newIdempotencyCache: %w", err)
		}
		return idempotency.NewRedisCache(client), nil, nil
	case config.DriverPostgres:
		repo := repository.NewIdempotencyRepository(db, time.Now)
		return repo, repo, nil
	default:
		cache := idempotency.NewMemoryCache(time.Now)
		return cache, cache, nil
	}
}
