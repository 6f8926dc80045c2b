package migrator

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hookrelay/hookrelay/db/migrations"
)

// Migrator is a database migrator
type Migrator struct {
	db   *sql.DB
	opts Options
}

type Options struct {
	DatabaseName string
}

type Status struct {
	Version uint
	Dirty   bool
}

func New(db *sql.DB, opts Options) *Migrator {
	return &Migrator{
		db:   db,
		opts: opts,
	}
}

func (m *Migrator) init() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(m.db, &postgres.Config{
		DatabaseName: m.opts.DatabaseName,
	})
	if err != nil {
		return nil, err
	}

	d, err := iofs.New(migrations.SQLs, ".")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", d, "postgres", driver)
}

// Reset drops every table, the migration history included.
func (m *Migrator) Reset() error {
	migrate, err := m.init()
	if err != nil {
		return err
	}
	return migrate.Drop()
}

// Up applies all pending migrations. No pending migration is not an error.
func (m *Migrator) Up() error {
	mg, err := m.init()
	if err != nil {
		return err
	}
	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (m *Migrator) Down() error {
	mg, err := m.init()
	if err != nil {
		return err
	}
	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Status returns the current status
func (m *Migrator) Status() (*Status, error) {
	mg, err := m.init()
	if err != nil {
		return nil, err
	}
	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{Version: version, Dirty: dirty}, nil
}
