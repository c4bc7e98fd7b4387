package main

import (
	"fmt"

	"cryptosim/config"
	pgStorage "cryptosim/internal/adapter/storage/postgres"
	"cryptosim/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
		ctx := cmd.Context()

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		applied, err := pgStorage.Migrate(ctx, pool, log)
		if err != nil {
			return err
		}
		log.Info().Strs("applied", applied).Msg("migrations complete")
		return nil
	},
}
