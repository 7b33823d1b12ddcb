package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	BackendRedis   = "redis"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	LedgerDriver       string        `env:"LEDGER_DRIVER" envDefault:"postgres"`
	IdempotencyBackend string        `env:"IDEMPOTENCY_BACKEND" envDefault:"postgres"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"1h"`
	RedisURL           string        `env:"REDIS_URL"`
	AdminJWTSecret     string        `env:"ADMIN_JWT_SECRET,required,notEmpty"`

	TransferFeePercent           decimal.Decimal `env:"TRANSFER_FEE_PERCENT" envDefault:"2.0"`
	DepositFeePercent            decimal.Decimal `env:"DEPOSIT_FEE_PERCENT" envDefault:"0.25"`
	AnnualInterestRatePercentage decimal.Decimal `env:"ANNUAL_INTEREST_RATE_PERCENTAGE" envDefault:"10.0"`
	LoanPeriodMonths             uint32          `env:"LOAN_PERIOD_MONTHS" envDefault:"60"`

	TimeScale           uint64    `env:"TIME_SCALE" envDefault:"720"`
	SimulationStart     time.Time `env:"SIMULATION_START" envDefault:"2026-01-01T00:00:00Z"`
	SimulationCycleDays int       `env:"SIMULATION_CYCLE_DAYS" envDefault:"30"`

	Interbank Interbank `envPrefix:"INTERBANK_"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

type Interbank struct {
	RetryCount         int    `env:"RETRY_COUNT" envDefault:"3"`
	DelaySeconds       int    `env:"DELAY_SECONDS" envDefault:"15"`
	LoanAmountCents    uint64 `env:"LOAN_AMOUNT_CENTS" envDefault:"100000000"`
	LoanThresholdCents uint64 `env:"LOAN_THRESHOLD_CENTS" envDefault:"10000000"`
	ClientCertPath     string `env:"CLIENT_CERT_PATH"`
	ClientKeyPath      string `env:"CLIENT_KEY_PATH"`

	Commercial BankEndpoints `envPrefix:"COMMERCIAL_"`
}

type BankEndpoints struct {
	CreateAccountURL string `env:"CREATE_ACCOUNT_URL"`
	GetAccountURL    string `env:"GET_ACCOUNT_URL"`
	IssueLoanURL     string `env:"ISSUE_LOAN_URL"`
	TransferURL      string `env:"TRANSFER_URL"`
	NotifyURL        string `env:"NOTIFY_URL"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks the invariants the services rely on at startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.LedgerDriver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER %q is not one of postgres, memory", c.LedgerDriver))
	}
	switch c.IdempotencyBackend {
	case DriverPostgres, DriverMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_BACKEND %q is not one of postgres, redis, memory", c.IdempotencyBackend))
	}
	if c.NeedsDatabase() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
	}
	if c.IdempotencyBackend == BackendRedis && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis idempotency backend"))
	}
	if c.LoanPeriodMonths == 0 {
		errs = append(errs, errors.New("LOAN_PERIOD_MONTHS must be positive"))
	}
	if c.TimeScale == 0 {
		errs = append(errs, errors.New("TIME_SCALE must be positive"))
	}
	if c.SimulationCycleDays <= 0 {
		errs = append(errs, errors.New("SIMULATION_CYCLE_DAYS must be positive"))
	}
	for name, pct := range map[string]decimal.Decimal{
		"TRANSFER_FEE_PERCENT":            c.TransferFeePercent,
		"DEPOSIT_FEE_PERCENT":             c.DepositFeePercent,
		"ANNUAL_INTEREST_RATE_PERCENTAGE": c.AnnualInterestRatePercentage,
	} {
		if pct.IsNegative() {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Interbank.RetryCount < 0 || c.Interbank.DelaySeconds < 0 {
		errs = append(errs, errors.New("INTERBANK_RETRY_COUNT and INTERBANK_DELAY_SECONDS must not be negative"))
	}
	if (c.Interbank.ClientCertPath == "") != (c.Interbank.ClientKeyPath == "") {
		errs = append(errs, errors.New("INTERBANK_CLIENT_CERT_PATH and INTERBANK_CLIENT_KEY_PATH must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}

func (c *Config) NeedsDatabase() bool {
	return c.LedgerDriver == DriverPostgres || c.IdempotencyBackend == DriverPostgres
}

// CycleLength is the simulated span between salary and installment runs.
func (c *Config) CycleLength() time.Duration {
	return time.Duration(c.SimulationCycleDays) * 24 * time.Hour
}

func (c *Config) InterbankOptions() interbank.Options {
	banks := make(map[domain.Bank]interbank.Endpoints)
	if ep := c.Interbank.Commercial; ep.TransferURL != "" {
		banks[domain.BankCommercial] = interbank.Endpoints{
			CreateAccountURL: ep.CreateAccountURL,
			GetAccountURL:    ep.GetAccountURL,
			IssueLoanURL:     ep.IssueLoanURL,
			TransferURL:      ep.TransferURL,
			NotifyURL:        ep.NotifyURL,
		}
	}
	return interbank.Options{
		RetryCount:         c.Interbank.RetryCount,
		Delay:              time.Duration(c.Interbank.DelaySeconds) * time.Second,
		LoanAmountCents:    c.Interbank.LoanAmountCents,
		LoanThresholdCents: c.Interbank.LoanThresholdCents,
		Banks:              banks,
	}
}
