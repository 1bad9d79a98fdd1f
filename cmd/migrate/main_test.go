package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationPart(t *testing.T) {
	content := `
-- +migrate Up
CREATE TABLE products (id uuid);
ALTER TABLE products ADD COLUMN stock int;

-- +migrate Down
DROP TABLE products;
`
	t.Run("Extract Up", func(t *testing.T) {
		up := extractMigrationPart(content, "Up")
		assert.Contains(t, up, "CREATE TABLE products")
		assert.Contains(t, up, "ALTER TABLE products")
		assert.NotContains(t, up, "DROP TABLE products")
		assert.NotContains(t, up, "-- +migrate Up")
	})

	t.Run("Extract Down", func(t *testing.T) {
		down := extractMigrationPart(content, "Down")
		assert.Contains(t, down, "DROP TABLE products")
		assert.NotContains(t, down, "CREATE TABLE products")
	})

	t.Run("Missing section", func(t *testing.T) {
		assert.Empty(t, extractMigrationPart("SELECT 1;", "Up"))
	})
}

func writeMigration(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMigrateUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies pending and skips applied", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()

		dir := t.TempDir()
		first := writeMigration(t, dir, "0001_init.sql", "-- +migrate Up\nCREATE TABLE a (id int);\n-- +migrate Down\nDROP TABLE a;")
		second := writeMigration(t, dir, "0002_more.sql", "-- +migrate Up\nCREATE TABLE b (id int);\n-- +migrate Down\nDROP TABLE b;")

		mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
			WithArgs("0001_init.sql").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
			WithArgs("0002_more.sql").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs("0002_more.sql").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, migrateUp(ctx, database, []string{first, second}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failed body rolls back", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()

		file := writeMigration(t, t.TempDir(), "0001_bad.sql", "-- +migrate Up\nCREATE TABLE broken;")

		mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
			WithArgs("0001_bad.sql").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		err = migrateUp(ctx, database, []string{file})
		assert.ErrorContains(t, err, "0001_bad.sql")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrateDown(t *testing.T) {
	ctx := context.Background()

	t.Run("Rolls back latest", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()

		file := writeMigration(t, t.TempDir(), "0001_init.sql", "-- +migrate Up\nCREATE TABLE a (id int);\n-- +migrate Down\nDROP TABLE a;")

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_init.sql"))
		mock.ExpectBegin()
		mock.ExpectExec("DROP TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM schema_migrations").
			WithArgs("0001_init.sql").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, migrateDown(ctx, database, []string{file}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing applied", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}))

		require.NoError(t, migrateDown(ctx, database, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing file", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0009_gone.sql"))

		err = migrateDown(ctx, database, nil)
		assert.ErrorContains(t, err, "0009_gone.sql")
	})
}

func TestRun_UnknownMode(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	err = run(context.Background(), database, "sideways", t.TempDir())
	assert.ErrorContains(t, err, "unknown mode")
}

func TestRepoMigrations(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		content, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Up"), f)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Down"), f)
	}
}
