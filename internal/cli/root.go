// Package cli implements karasuctl, the admin command line for the content
// improvement backend.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	"github.com/karasuemlak/backend/pkg/config"
)

var (
	envFile string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "karasuctl",
	Short:         "Karasu Emlak content improvement admin tool",
	Long:          `karasuctl runs database migrations, improves listing, article and news fields from the terminal and inspects improvement jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env (if present), the environment and sets up logging
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if isDebug {
		level = "debug"
	}
	// The CLI always logs for humans
	observability.InitLogger("karasuctl", "development", level)
	return cfg, nil
}
