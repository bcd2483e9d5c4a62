package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/example/gitfav/internal/config"
	"github.com/example/gitfav/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
		dir     = flag.String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	)
	flag.Parse()

	log := logger.New("info", "")
	defer log.Sync()

	cfg, err := config.New()
	if err != nil {
		log.Fatal("config error", zap.Error(err))
	}

	if cfg.DBAdapter != "postgres" {
		log.Fatal("migrations only work with PostgreSQL", zap.String("adapter", cfg.DBAdapter))
	}

	migrationsDir := cfg.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}

	m, closeDB, err := open(migrationsDir, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open migrations", zap.Error(err))
	}
	defer closeDB()

	switch *command {
	case "up":
		if err := run(m, true, *steps); err != nil {
			log.Fatal("migration up failed", zap.Error(err))
		}
		log.Info("migrations applied", zap.Int("steps", *steps))
	case "down":
		if err := run(m, false, *steps); err != nil {
			log.Fatal("migration down failed", zap.Error(err))
		}
		log.Info("migrations rolled back", zap.Int("steps", *steps))
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			v, dirty, err = 0, false, nil
		}
		if err != nil {
			log.Fatal("failed to get version", zap.Error(err))
		}
		if dirty {
			log.Warn("schema is dirty", zap.Uint("version", v))
			os.Exit(1)
		}
		log.Info("schema version", zap.Uint("version", v))
	case "force":
		if *version == 0 {
			log.Fatal("version required for force command (use -version flag)")
		}
		if err := m.Force(int(*version)); err != nil {
			log.Fatal("force migration failed", zap.Error(err))
		}
		log.Info("schema version forced", zap.Uint("version", *version))
	default:
		log.Fatal("unknown command (supported: up, down, version, force)", zap.String("command", *command))
	}
}

func open(migrationsDir, dsn string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, func() { db.Close() }, nil
}

func run(m *migrate.Migrate, up bool, steps int) error {
	if steps > 0 {
		if !up {
			steps = -steps
		}
		if err := m.Steps(steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("applying migrations: %w", err)
		}
		return nil
	}
	if up {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("applying migrations: %w", err)
		}
		return nil
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}
