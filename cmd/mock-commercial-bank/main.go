// Command mock-commercial-bank stands in for the commercial bank's API
// during local runs. State lives in memory and is lost on restart.
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

	env "github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"

	"github.com/josh-kwaku/retail-bank/internal/logging"
	"github.com/josh-kwaku/retail-bank/internal/middleware"
)

type config struct {
	Port         int     `env:"PORT" envDefault:"8081"`
	LogLevel     string  `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv       string  `env:"APP_ENV" envDefault:"development"`
	FailureRate  float64 `env:"MOCK_FAILURE_RATE" envDefault:"0"`
	OpeningCents int64   `env:"MOCK_OPENING_BALANCE_CENTS" envDefault:"0"`
	LoanSucceeds bool    `env:"MOCK_LOAN_SUCCEEDS" envDefault:"true"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		slog.Error("MOCK_FAILURE_RATE must be between 0 and 1", "value", cfg.FailureRate)
		os.Exit(1)
	}

	logging.Init("mock-commercial-bank", cfg.LogLevel, cfg.AppEnv)

	bank := newBank(cfg.OpeningCents, cfg.FailureRate, cfg.LoanSucceeds)

	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	bank.routes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock commercial bank started", "addr", addr, "failure_rate", cfg.FailureRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
}
