/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/internal/db"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsSource string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run PostgreSQL migrations (STORE_BACKEND=postgres)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := sl.New(cfg.Env)

		migrator, err := migrate.New(migrationsSource, db.PostgresURL(cfg.Database))
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("migrations already applied")
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}

		version, _, _ := migrator.Version()
		log.Info("migrations applied", slog.Uint64("version", uint64(version)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsSource, "source", "file://internal/db/migrations", "migration source URL")
}
