package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	poolIdleTime   = 5 * time.Minute
)

// DSN builds a key/value connection string for lib/pq.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		quoteValue(cfg.User), quoteValue(cfg.Password), cfg.Host, cfg.Port, quoteValue(cfg.Name), cfg.SSLMode,
	)
}

// MigrateURL builds the postgres:// URL golang-migrate expects.
func MigrateURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func quoteValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens a lib/pq pool sized by cfg.MaxConnections and
// verifies it answers within connectTimeout.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	log := logger.DB.With(
		slog.String("driver", config.DriverPostgres),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	)
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", DSN(cfg))
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "",
			slog.String("event", "db.connect"),
			slog.String("status", "fail"),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(poolIdleTime)

	log.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "db.connect"),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", time.Since(start)),
	)
	return db, nil
}

// WaitForPostgres pings the database until it answers, ctx is done or timeout elapses.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}
	defer db.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database: not ready after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}
