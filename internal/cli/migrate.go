package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgres"
	"github.com/karasuemlak/backend/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the job store schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(client *postgres.Client) error {
			if err := migrations.Up(cmd.Context(), client.DB()); err != nil {
				return err
			}
			version, err := migrations.Version(cmd.Context(), client.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(client *postgres.Client) error {
			return migrations.Status(cmd.Context(), client.DB())
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withDB(cmd *cobra.Command, fn func(client *postgres.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	return fn(client)
}
