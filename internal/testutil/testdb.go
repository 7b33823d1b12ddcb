package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Tables emptied between tests. ledger_clock keeps its single row and is
// rewound instead.
var resetTables = []string{
	"ledger_transfers",
	"ledger_accounts",
	"idempotency_keys",
	"external_transfers",
}

// One container serves the whole test binary; the reaper removes it when
// the process exits.
var shared struct {
	once sync.Once
	db   *sql.DB
	err  error
}

// SetupTestDB returns a migrated Postgres with every table empty.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}

	shared.once.Do(func() {
		shared.db, shared.err = startPostgres(context.Background())
	})
	if shared.err != nil {
		t.Fatalf("start postgres: %v", shared.err)
	}

	if err := reset(context.Background(), shared.db); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return shared.db
}

func startPostgres(ctx context.Context) (*sql.DB, error) {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("retail_bank_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if err := applyMigrations(ctx, db, migrationsDir()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

func reset(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(resetTables, ", ")); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `UPDATE ledger_clock SET last_timestamp = 0 WHERE id = 1`)
	return err
}

// migrationsDir resolves the repository's migrations folder from this
// file's location, independent of the package under test.
func migrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
