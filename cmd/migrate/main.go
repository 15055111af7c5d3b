package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Dhoini/comics-billing/internal/config"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.DSN == "" {
		log.Fatalw("database.dsn is required")
	}

	source := os.Getenv("MIGRATIONS_PATH")
	if source == "" {
		source = "file://migrations"
	}

	m, err := migrate.New(source, migrateURL(cfg.Database.DSN))
	if err != nil {
		log.Fatalw("Failed to initialize migrations", "error", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorw("Failed to close migration resources", "sourceError", sourceErr, "dbError", dbErr)
		}
	}()

	switch command {
	case "up":
		report(log, m.Up(), "Migrations applied")

	case "down":
		report(log, m.Steps(-1), "Last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalw("Version is required for goto")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalw("Invalid version", "version", os.Args[2], "error", err)
		}
		report(log, m.Migrate(uint(version)), "Migrated to version", "version", version)

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Infow("No migrations applied yet")
			return
		}
		if err != nil {
			log.Fatalw("Failed to read migration version", "error", err)
		}
		log.Infow("Current migration version", "version", version, "dirty", dirty)

	default:
		printUsage()
		os.Exit(1)
	}
}

func report(log *logger.Logger, err error, msg string, keysAndValues ...interface{}) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Infow("No change: database is up to date")
	case err != nil:
		log.Fatalw("Migration failed", "error", err)
	default:
		log.Infow(msg, keysAndValues...)
	}
}

// Драйвер pgx/v5 регистрируется под схемой pgx5.
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

func printUsage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  up          apply all pending migrations")
	fmt.Println("  down        roll back the last migration")
	fmt.Println("  goto <v>    migrate to version v")
	fmt.Println("  status      print the current version")
}
