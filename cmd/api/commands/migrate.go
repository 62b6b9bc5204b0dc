package commands

import (
	"errors"

	pg "dental-inspections/internal/adapters/storage/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded Postgres schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn (or DB_DSN) is required")
		}

		db, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := pg.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info("schema applied", nil)
		return nil
	},
}
