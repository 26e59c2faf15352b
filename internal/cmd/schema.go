package cmd

import (
	"fmt"

	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/spf13/cobra"
)

// NewSchemaCmd creates the schema command
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the SQLite schema",
		Long:  `Migrates an in-memory SQLite database and prints the tables and indexes it holds.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(&config.Config{DBType: "sqlite", DBDatabase: ":memory:", LogLevel: "critical"})
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.AutoMigrate(db); err != nil {
				return err
			}

			var entries []struct {
				Type string
				Name string
				SQL  string
			}
			err = db.Raw("SELECT type, name, sql FROM sqlite_master WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' ORDER BY type DESC, name").
				Scan(&entries).Error
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				fmt.Fprintf(out, "\n=== %s: %s ===\n", entry.Type, entry.Name)
				fmt.Fprintf(out, "%s;\n", entry.SQL)
			}
			return nil
		},
	}
}
