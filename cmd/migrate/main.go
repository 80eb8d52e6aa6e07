package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/liamcoop/surveylogic/internal/logger"
)

func main() {
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, steps, version, force")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal("Database URL is required. Use -database flag or DATABASE_URL environment variable")
	}

	logger.Info("Connecting to database...", "migrations", migrationsPath)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("Failed to create migration instance", "error", err)
	}
	defer m.Close()

	if err := run(m, command, flag.Args()); err != nil {
		logger.Fatal("Migration failed", "command", command, "error", err)
	}
}

func run(m *migrate.Migrate, command string, args []string) error {
	switch command {
	case "up":
		logger.Info("Running migrations up...")
		return report(m.Up(), "Migrations completed successfully")

	case "down":
		logger.Info("Rolling back migrations...")
		return report(m.Down(), "Rollback completed successfully")

	case "steps":
		n, err := intArg(command, args)
		if err != nil {
			return err
		}
		return report(m.Steps(n), "Stepped migrations")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("No migration has been applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("Current version", "version", version, "dirty", dirty)
		return nil

	case "force":
		version, err := intArg(command, args)
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		logger.Info("Forced version", "version", version)
		return nil
	}
	return fmt.Errorf("unknown command %q (use: up, down, steps, version, force)", command)
}

func report(err error, done string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to run (database is up to date)")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(done)
	return nil
}

func intArg(command string, args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s requires a number: -command %s <n>", command, command)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}
