// Package cmd holds the portsmith command line.
package cmd

import (
	"fmt"

	"github.com/localnerve/portsmith/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	envFile string
}

// NewRootCmd creates the portsmith command with all subcommands attached
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "portsmith",
		Short: "Port reservation registry",
		Long: `Portsmith hands out network ports to a fleet of cooperating processes so that
no two of them are given the same port. Ports are reserved, annotated with tags
and properties, discovered by tag and released over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file")

	// Add subcommands
	rootCmd.AddCommand(NewCreateCmd(opts))
	rootCmd.AddCommand(NewStartCmd(opts))
	rootCmd.AddCommand(NewHealthcheckCmd(opts))
	rootCmd.AddCommand(NewSchemaCmd())

	return rootCmd
}

// loadConfig reads the environment, lets set flags override it and validates the result
func loadConfig(opts *globalOptions, path, logLevel string) (*config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.DBDatabase = path
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
