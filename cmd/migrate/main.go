package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "directory holding *.sql migrations")
	flag.Parse()

	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	database, err := open()
	if err != nil {
		logger.L().Fatal("failed to connect db", zap.Error(err))
	}
	defer database.Close()

	if err := run(context.Background(), database, *mode, *dir); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}
}

// open prefers DB_URL and falls back to the server's DB_* settings.
func open() (*sql.DB, error) {
	if url := os.Getenv("DB_URL"); url != "" {
		return sql.Open("postgres", url)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return db.NewDatabase(cfg)
}

func run(ctx context.Context, database *sql.DB, mode, migrationsDir string) error {
	_, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	slices.Sort(files)

	switch mode {
	case "up":
		return migrateUp(ctx, database, files)
	case "down":
		return migrateDown(ctx, database, files)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up' or 'down')", mode)
	}
}

func migrateUp(ctx context.Context, database *sql.DB, files []string) error {
	log := logger.L()
	applied := 0

	for _, file := range files {
		version := filepath.Base(file)

		var exists bool
		err := database.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			log.Debug("skipping applied migration", zap.String("version", version))
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		log.Info("applying migration", zap.String("version", version))
		err = apply(ctx, database, extractMigrationPart(string(content), "Up"),
			`INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		if err != nil {
			return fmt.Errorf("migration %s: %w", version, err)
		}
		applied++
	}

	log.Info("migrations up to date", zap.Int("applied", applied))
	return nil
}

func migrateDown(ctx context.Context, database *sql.DB, files []string) error {
	log := logger.L()

	var last string
	err := database.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`,
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	i := slices.IndexFunc(files, func(f string) bool { return filepath.Base(f) == last })
	if i < 0 {
		return fmt.Errorf("migration file not found for version: %s", last)
	}

	content, err := os.ReadFile(files[i])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", files[i], err)
	}

	log.Info("rolling back migration", zap.String("version", last))
	err = apply(ctx, database, extractMigrationPart(string(content), "Down"),
		`DELETE FROM schema_migrations WHERE version = $1`, last)
	if err != nil {
		return fmt.Errorf("rollback %s: %w", last, err)
	}
	return nil
}

// apply runs a migration body and its bookkeeping statement atomically.
func apply(ctx context.Context, database *sql.DB, body, record, version string) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// extractMigrationPart returns the lines between "-- +migrate <section>" and
// the next marker.
func extractMigrationPart(content string, section string) string {
	var part strings.Builder
	inPart := false

	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "-- +migrate "+section) {
			inPart = true
			continue
		}
		if inPart && strings.HasPrefix(line, "-- +migrate") {
			break
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
