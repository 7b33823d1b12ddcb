package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/bank")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.LedgerDriver)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.TransferFeePercent.Equal(decimal.NewFromInt(2)))
	assert.True(t, cfg.DepositFeePercent.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, cfg.AnnualInterestRatePercentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, uint32(60), cfg.LoanPeriodMonths)
	assert.Equal(t, uint64(720), cfg.TimeScale)
	assert.Equal(t, 3, cfg.Interbank.RetryCount)
	assert.Equal(t, 15, cfg.Interbank.DelaySeconds)
	assert.Equal(t, uint64(100000000), cfg.Interbank.LoanAmountCents)
	assert.Equal(t, 30*24*time.Hour, cfg.CycleLength())
}

func TestLoad_NestedInterbankEndpoints(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "secret")
	t.Setenv("LEDGER_DRIVER", "memory")
	t.Setenv("IDEMPOTENCY_BACKEND", "memory")
	t.Setenv("INTERBANK_DELAY_SECONDS", "2")
	t.Setenv("INTERBANK_COMMERCIAL_TRANSFER_URL", "http://commercial/transfers")
	t.Setenv("INTERBANK_COMMERCIAL_NOTIFY_URL", "http://retail/notify")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.InterbankOptions()
	assert.Equal(t, 2*time.Second, opts.Delay)
	require.Contains(t, opts.Banks, domain.BankCommercial)
	assert.Equal(t, "http://commercial/transfers", opts.Banks[domain.BankCommercial].TransferURL)
	assert.Equal(t, "http://retail/notify", opts.Banks[domain.BankCommercial].NotifyURL)
}

func TestLoad_EmptySecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/bank")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:         "postgres://localhost/bank",
			LedgerDriver:        DriverPostgres,
			IdempotencyBackend:  DriverPostgres,
			LoanPeriodMonths:    60,
			TimeScale:           720,
			SimulationCycleDays: 30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero loan period", func(c *Config) { c.LoanPeriodMonths = 0 }, "LOAN_PERIOD_MONTHS"},
		{"unknown driver", func(c *Config) { c.LedgerDriver = "tigerbeetle" }, "LEDGER_DRIVER"},
		{"redis without url", func(c *Config) { c.IdempotencyBackend = BackendRedis }, "REDIS_URL"},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"memory needs no url", func(c *Config) {
			c.DatabaseURL = ""
			c.LedgerDriver = DriverMemory
			c.IdempotencyBackend = DriverMemory
		}, ""},
		{"negative fee", func(c *Config) { c.TransferFeePercent = decimal.NewFromInt(-1) }, "TRANSFER_FEE_PERCENT"},
		{"half a client cert", func(c *Config) { c.Interbank.ClientCertPath = "cert.pem" }, "CLIENT_KEY_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
