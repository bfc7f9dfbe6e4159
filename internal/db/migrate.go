package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/toolgate/toolgate/internal/config"
)

// RunMigrate applies or rolls back schema migrations against the configured
// database. The migrationsFS must contain the .sql files at its root (not in
// a subdirectory). Supported commands: "up", "down", "version", "force N".
func RunMigrate(logger *slog.Logger, cfg config.PostgresConfig, migrationsFS fs.FS, command string, args []string) error {
	forceVersion := -1
	switch command {
	case "up", "down", "version":
	case "force":
		if len(args) == 0 {
			return fmt.Errorf("force requires a version number argument")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		forceVersion = v
	default:
		return fmt.Errorf("unknown migrate command: %s (use: up, down, version, force)", command)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, DSN(cfg))
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: logger}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		logger.Info("all migrations rolled back")
		return nil
	case "force":
		if err := m.Force(forceVersion); err != nil {
			return fmt.Errorf("migrate force: %w", err)
		}
		logger.Info("forced schema version", slog.Int("version", forceVersion))
		return nil
	}

	ver, dirty, err := m.Version()
	if command == "version" && err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	logger.Info("schema version", slog.Uint64("version", uint64(ver)), slog.Bool("dirty", dirty))
	return nil
}

// migrateLogger adapts slog to the migrate.Logger interface.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool { return false }
