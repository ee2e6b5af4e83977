// Package database owns the Postgres pool, migrations and transaction scoping.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const defaultRetries = 5

type DatabaseConfig struct {
	ConnectionURL string
}

// WaitForDB pings the pool with a linear backoff.
func WaitForDB(ctx context.Context, pgpool *pgxpool.Pool, logger *zap.Logger) bool {
	maxAttempts := defaultRetries
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := pgpool.Ping(ctx)
		if err == nil {
			logger.Info("Database connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.Warn("Database ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		if attempts < maxAttempts {
			time.Sleep(waitDuration)
		}
	}
	logger.Error("Database connection failed after multiple retries")
	return false
}

func RunMigrations(databaseURL string, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		logger.Error("Failed to read embedded migrations directory", zap.Error(err))
		return fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}
	for _, entry := range entries {
		logger.Debug("Found embedded migration file", zap.String("name", entry.Name()))
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		logger.Error("Failed to create migration source driver", zap.Error(err))
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		errMsg := "invalid database URL scheme for migrate, ensure it starts with postgresql://"
		logger.Error(errMsg)
		return fmt.Errorf("%s", errMsg)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		logger.Error("Failed to initialize migrate instance", zap.Error(err))
		return fmt.Errorf("failed to initialize migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Error closing migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Error closing migration database connection", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Failed to apply migrations", zap.Error(err))
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	noChange := errors.Is(err, migrate.ErrNoChange)

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		logger.Warn("Could not determine migration version", zap.Error(err))
	case dirty:
		logger.Error("DATABASE MIGRATION STATE IS DIRTY!", zap.Uint64("version", uint64(version)))
	case noChange:
		logger.Info("No new migrations to apply.", zap.Uint64("current_version", uint64(version)))
	default:
		logger.Info("Database migrations applied successfully.", zap.Uint64("new_version", uint64(version)))
	}

	return nil
}

// NewDatabaseConfig generates the database connection URL from configuration.
func NewDatabaseConfig(cfg *config.Config, logger *zap.Logger) (*DatabaseConfig, error) {
	if cfg == nil || cfg.Repositories.Postgres.Host == "" {
		errMsg := "Postgres configuration is missing or invalid"
		logger.Error(errMsg)
		return nil, fmt.Errorf("%s", errMsg)
	}

	pg := cfg.Repositories.Postgres
	query := url.Values{}
	query.Set("sslmode", pg.SSLMode)
	query.Set("timezone", "utc")

	connURL := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(pg.Username, pg.Password),
		Host:     fmt.Sprintf("%s:%s", pg.Host, pg.Port),
		Path:     pg.DB,
		RawQuery: query.Encode(),
	}

	logger.Info("Database connection URL generated", zap.String("host", connURL.Host), zap.String("database", connURL.Path))

	return &DatabaseConfig{
		ConnectionURL: connURL.String(),
	}, nil
}

// Init initializes the pgxpool connection pool and registers the uuid codec
// on every new connection.
func Init(connectionURL string, pgCfg config.PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("Initializing database connection pool...")
	cfg, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		logger.Error("Failed to parse database config", zap.Error(err))
		return nil, fmt.Errorf("failed parsing db config: %w", err)
	}

	if pgCfg.MaxConns > 0 {
		cfg.MaxConns = pgCfg.MaxConns
	}
	if pgCfg.MinConns > 0 {
		cfg.MinConns = pgCfg.MinConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to create database connection pool", zap.Error(err))
		return nil, fmt.Errorf("failed creating db pool: %w", err)
	}

	logger.Info("Database connection pool initialized")
	return pool, nil
}
