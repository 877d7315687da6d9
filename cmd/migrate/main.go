package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"treasurer/internal/config"
	"treasurer/internal/database"
	"treasurer/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const usage = "usage: migrate up | down [N] | force VERSION | version"

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbConfig := database.NewConfig(cfg)
	if dbConfig.Driver == "sqlite" {
		return errors.New("sqlite databases are migrated from the models at startup")
	}

	m, err := migrate.New("file://migrations", dbConfig.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Get().Warnw("migrate close failed", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	log := logger.Get()
	switch args[0] {
	case "up":
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info("Schema is up to date")

	case "down":
		n, err := intArg(args, 1)
		if err != nil {
			return err
		}
		if err := ignoreNoChange(m.Steps(-n)); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Infow("Rolled back", "steps", n)

	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		v, err := intArg(args, 0)
		if err != nil {
			return err
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		log.Infow("Forced schema version", "version", v)

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}
		log.Infow("Schema version", "version", v, "dirty", dirty)

	default:
		return fmt.Errorf("unknown command %q, %s", args[0], usage)
	}
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// intArg reads args[1], or returns def when it is absent. Zero is only
// accepted when def is zero.
func intArg(args []string, def int) (int, error) {
	if len(args) < 2 {
		return def, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 || (def > 0 && n == 0) {
		return 0, fmt.Errorf("invalid number %q", args[1])
	}
	return n, nil
}
