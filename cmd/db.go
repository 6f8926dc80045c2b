package cmd

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/migrator"
	"github.com/spf13/cobra"
)

var (
	quiet bool
)

func newMigrator() (*migrator.Migrator, *sql.DB, error) {
	cfg, err := initConfig(configurationFile)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.NewSqlDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return migrator.New(sqlDB, migrator.Options{DatabaseName: cfg.Database.Database}), sqlDB, nil
}

func newDatabaseResetCmd() *cobra.Command {
	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset the database",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Are you sure? This operation is irreversible.") {
					return errors.New("canceled")
				}
			}
			m, sqlDB, err := newMigrator()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			if !quiet {
				cmd.Println("resetting database...")
			}
			if err := m.Reset(); err != nil {
				return err
			}
			if !quiet {
				cmd.Println("database successfully reset")
			}
			return nil
		},
	}
	reset.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "yes")
	return reset
}

func newDatabaseCmd() *cobra.Command {

	database := &cobra.Command{
		Use:   "db",
		Short: "Database commands",
		Long:  ``,
	}

	database.PersistentFlags().StringVarP(&configurationFile, "config", "", "", "The configuration filename")
	database.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	database.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the migration status",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, sqlDB, err := newMigrator()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			status, err := m.Status()
			if err != nil {
				return err
			}
			if status.Dirty {
				cmd.Printf("%d (dirty)\n", status.Version)
			} else {
				cmd.Printf("%d\n", status.Version)
			}
			return nil
		},
	})

	database.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run any new migrations",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, sqlDB, err := newMigrator()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			if !quiet {
				cmd.Println("database is up-to-date")
			}
			return nil
		},
	})

	database.AddCommand(newDatabaseResetCmd())

	return database
}
