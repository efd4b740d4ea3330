package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/whatsapp-relay/internal/config"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/database"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("migrate requires RELAY_STORAGE=%s", config.StoragePostgres)
	}

	log := logger.New(cfg)

	db, err := database.Connect(newDatabaseConfig(cfg, gormlogger.Warn))
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		return err
	}

	log.Info().Msg("migrations applied")
	return nil
}
