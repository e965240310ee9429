package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/logger"
)

const readyTimeout = 30 * time.Second

// migrationFile is one *.up.sql file in the migrations directory.
type migrationFile struct {
	version uint64
	name    string
}

// RunMigrations waits for the server, then applies every pending up
// migration from cfg.MigrationsDir. Cancelling ctx stops after the
// migration in progress.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig) error {
	if err := WaitForPostgres(ctx, DSN(cfg), readyTimeout); err != nil {
		return migrateFailed("wait", err)
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return migrateFailed("resolve", err)
	}
	files, err := scanMigrations(dir)
	if err != nil {
		return migrateFailed("resolve", err)
	}
	logger.MIG.Debug("migrations resolved",
		slog.String("event", "db.migrate.resolve"),
		slog.String("path", dir),
		slog.Int("count", len(files)),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), MigrateURL(cfg))
	if err != nil {
		return migrateFailed("init", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed",
				slog.String("event", "db.migrate.close"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateFailed("apply", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	preview, truncated := logger.SummarizeStrings(applied, 6)
	logger.MIG.Info("migrations applied",
		slog.String("event", "db.migrate"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", len(applied)),
		slog.String("files", preview),
		slog.Bool("files_truncated", truncated),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func migrateFailed(step string, err error) error {
	logger.MIG.Error("migration failed",
		slog.String("event", "db.migrate."+step),
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("database: migrate %s: %w", step, err)
}

// scanMigrations lists up migrations in dir ordered by version.
func scanMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version prefix", e.Name())
		}
		files = append(files, migrationFile{version: v, name: e.Name()})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		switch {
		case a.version < b.version:
			return -1
		case a.version > b.version:
			return 1
		}
		return 0
	})
	return files, nil
}

// appliedBetween names the files with from < version <= to.
func appliedBetween(files []migrationFile, from, to uint64) []string {
	var names []string
	for _, f := range files {
		if f.version > from && f.version <= to {
			names = append(names, f.name)
		}
	}
	return names
}
