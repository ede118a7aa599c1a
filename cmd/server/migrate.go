package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gianverdum/member-registry/internal/config"
	"github.com/gianverdum/member-registry/internal/database"
	"github.com/gianverdum/member-registry/internal/utils"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the members table and its indexes",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.SetupLogging(cfg.Logging.Format, cfg.Logging.Level)

	db, err := database.Connect(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	slog.Info("Migration finished", "driver", cfg.Database.Driver)
	return nil
}
