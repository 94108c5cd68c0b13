package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	// ErrNoDatabase is returned by every query when no pool is configured.
	ErrNoDatabase = errors.New("database not configured")
	// ErrNotFound is returned when a requested invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
)

// Pool is the global database connection pool
var Pool *pgxpool.Pool

var tenantAlias = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// ensured holds the schemas already bootstrapped by this process.
var ensured sync.Map

// Init initializes the database connection pool. An empty dsn returns
// ErrNoDatabase and leaves the service in extraction-only mode.
func Init(ctx context.Context, dsn string, logger *zap.Logger) error {
	if dsn == "" {
		return ErrNoDatabase
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	Pool = pool
	logger.Info("db.pool.ready",
		zap.String("host", config.ConnConfig.Host),
		zap.String("database", config.ConnConfig.Database))
	return nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
	ensured.Range(func(k, _ any) bool {
		ensured.Delete(k)
		return true
	})
}

// SchemaForTenant returns the schema holding a tenant's invoices. Aliases
// that are not plain lowercase identifiers fall back to public.
func SchemaForTenant(alias string) string {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if !tenantAlias.MatchString(alias) {
		return "public"
	}
	return "tenant_" + alias
}

func table(tenant, name string) string {
	return pgx.Identifier{SchemaForTenant(tenant), name}.Sanitize()
}

// EnsureSchema creates the tenant schema and its tables when missing. It only
// reaches the database once per schema and process.
func EnsureSchema(ctx context.Context, tenant string) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	name := SchemaForTenant(tenant)
	if _, ok := ensured.Load(name); ok {
		return nil
	}

	schema := pgx.Identifier{name}.Sanitize()
	invoices := table(tenant, "invoices")
	items := table(tenant, "invoice_line_items")

	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id             UUID PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			invoice_date   DATE,
			due_date       DATE,
			vendor         TEXT NOT NULL,
			customer       TEXT NOT NULL,
			subtotal_cents BIGINT NOT NULL DEFAULT 0,
			tax_cents      BIGINT NOT NULL DEFAULT 0,
			total_cents    BIGINT NOT NULL DEFAULT 0,
			methods        TEXT[] NOT NULL DEFAULT '{}',
			plausible      BOOLEAN NOT NULL DEFAULT FALSE,
			reason         TEXT NOT NULL DEFAULT '',
			object_path    TEXT NOT NULL DEFAULT '',
			created_by     TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, invoices),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS invoices_duplicate_key ON %s (invoice_number, vendor, total_cents)`, invoices),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			invoice_id       UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			position         INT NOT NULL,
			description      TEXT NOT NULL,
			quantity         NUMERIC NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			amount_cents     BIGINT NOT NULL,
			PRIMARY KEY (invoice_id, position)
		)`, items, invoices),
	}

	for _, stmt := range statements {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	ensured.Store(name, struct{}{})
	return nil
}
