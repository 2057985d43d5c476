package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Migrate applies every pending migration found under dir in fsys.
// It returns the schema version after the run.
func Migrate(dsn string, fsys fs.FS, dir string) (uint, error) {
	m, closeFn, err := newMigrator(dsn, fsys, dir)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("platform/db: migrate up: %w", err)
	}
	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("platform/db: migrate version: %w", err)
	}
	return version, nil
}

// Rollback reverts the given number of migrations.
func Rollback(dsn string, fsys fs.FS, dir string, steps int) error {
	if steps <= 0 {
		return errors.New("platform/db: rollback steps must be positive")
	}
	m, closeFn, err := newMigrator(dsn, fsys, dir)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/db: migrate down: %w", err)
	}
	return nil
}

func newMigrator(dsn string, fsys fs.FS, dir string) (*migrate.Migrate, func(), error) {
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("platform/db: migration source: %w", err)
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("platform/db: open: %w", err)
	}
	driver, err := migratepgx.WithInstance(conn, &migratepgx.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("platform/db: migration instance: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}
