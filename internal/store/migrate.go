package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"intent-broker/internal/common/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLogger adapts Logger to migrate.Logger.
type migrationLogger struct {
	log logger.Logger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.log.Info(fmt.Sprintf(format, v...), nil)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies all pending up migrations. The migrate instance is not closed
// because that would close db as well.
func Migrate(db *sql.DB, log logger.Logger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrationLogger{log: log.WithFields(map[string]interface{}{"component": "migrate"})}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		log.Info("database schema ready", map[string]interface{}{"version": version, "dirty": dirty})
	}
	return nil
}
