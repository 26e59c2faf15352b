package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/localnerve/portsmith/internal/database"
	"github.com/localnerve/portsmith/internal/services"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("unhealthy")

// NewHealthcheckCmd creates the healthcheck command
func NewHealthcheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the database and broker",
		Long:  `Prints the health check result as JSON and exits non-zero when a dependency is unreachable.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, "", "")
			if err != nil {
				return err
			}

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close(db)

			result := services.HealthCheck(cmd.Context(), cfg, db)

			// Output result as JSON
			output, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal health check result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))

			if !result.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
}
