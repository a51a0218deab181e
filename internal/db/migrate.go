package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending up migration for driver. It opens its
// own connection so closing the migrator never touches the caller's pool.
// Already being at the latest version is not an error.
func RunMigrations(driver, dsn string) (version uint, err error) {
	conn, err := Open(driver, dsn)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	var (
		dir string
		drv database.Driver
	)
	switch driver {
	case DriverSQLite:
		dir = "migrations/sqlite"
		drv, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		drv, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	default:
		return 0, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return 0, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, drv)
	if err != nil {
		return 0, fmt.Errorf("migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, _, err = m.Version()
	if err != nil {
		return 0, fmt.Errorf("migration version: %w", err)
	}
	return version, nil
}
