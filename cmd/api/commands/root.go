package commands

import (
	"dental-inspections/internal/platform/config"
	"dental-inspections/internal/platform/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Dental clinic inspections backend",
	Long: `Backend de inspecciones sanitarias de clínicas dentales.

Sin subcomando arranca el servidor HTTP (igual que "api serve").`,
	RunE: runServe,
}

// Execute corre el comando raíz; main solo imprime el error.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (env vars override it)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(renderCmd)
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})
	return cfg, log, nil
}
