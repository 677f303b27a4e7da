package main

import (
	"errors"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Create the durable session store schema",
	Annotations: map[string]string{annotationStructuredLog: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadForMigrate()
		if err != nil {
			return err
		}

		source, err := iofs.New(db.Migrations, "migrations")
		if err != nil {
			return err
		}

		m, err := migrate.NewWithSourceInstance("iofs", source, cfg.DatabaseURL)
		if err != nil {
			return err
		}

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				slog.Info("no changes to apply")
				return nil
			}
			return err
		}

		slog.Info("migrations applied successfully")
		return nil
	},
}
