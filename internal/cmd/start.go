package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/localnerve/portsmith/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewStartCmd creates the start command
func NewStartCmd(opts *globalOptions) *cobra.Command {
	var path, logLevel string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the registry",
		Long: `Serves the reservation API on PORT (default 55000). The reservation store must
have been created with 'portsmith create' first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, path, logLevel)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Database to serve (default DB_DATABASE or portsmith.db)")
	cmd.Flags().StringVar(&logLevel, "log-level", "",
		fmt.Sprintf("Log level, one of %s (default LOG_LEVEL or critical)", strings.Join(config.LogLevels, ", ")))

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg)
	if err != nil {
		if errors.Is(err, database.ErrNotProvisioned) {
			color.New(color.FgRed).Fprintln(os.Stderr, "DB does not exist.")
		}
		return err
	}
	defer database.Close(db)

	app := server.New(cfg, db, prometheus.DefaultRegisterer)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	log.Printf("Starting server on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
