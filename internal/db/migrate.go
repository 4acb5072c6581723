package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// cart_snapshots and event_sequences ship inside the binary.
//
//go:embed migrations/*.sql
var cartSchemaFS embed.FS

// cartSchemaTable keeps the cart service's version row apart from other
// services sharing the database.
const cartSchemaTable = "cart_schema_migrations"

func cartSchemaSource() (source.Driver, error) {
	return iofs.New(cartSchemaFS, "migrations")
}

// MigrateCartSchema brings the cart tables up to the newest embedded version.
func MigrateCartSchema(dsn string, logger *log.Logger) error {
	conn, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("open db for cart schema: %w", err)
	}
	defer conn.Close()

	m, err := newCartMigrator(conn)
	if err != nil {
		return err
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Printf("cart schema: nothing to apply")
	case err != nil:
		return fmt.Errorf("apply cart schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read cart schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("cart schema left dirty at version %d", version)
	}
	logger.Printf("cart schema: version %d", version)
	return nil
}

func newCartMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	src, err := cartSchemaSource()
	if err != nil {
		return nil, fmt.Errorf("load embedded cart schema: %w", err)
	}
	target, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: cartSchemaTable})
	if err != nil {
		return nil, fmt.Errorf("cart schema driver: %w", err)
	}
	m, err := migrate.NewWithInstance("cart-embed", src, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("cart schema migrator: %w", err)
	}
	return m, nil
}
