package cmd

import (
	"errors"

	"github.com/fatih/color"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/spf13/cobra"
)

// NewCreateCmd creates the create command
func NewCreateCmd(opts *globalOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the reservation store",
		Long: `Creates the reservation tables in the configured database. For SQLite the
database file is created at --path. Fails if the store already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, path, "")
			if err != nil {
				return err
			}

			if err := database.Provision(cfg); err != nil {
				if errors.Is(err, database.ErrAlreadyProvisioned) {
					color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), "DB already exists.")
				}
				return err
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "DB created.")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Database to create (default DB_DATABASE or portsmith.db)")

	return cmd
}
