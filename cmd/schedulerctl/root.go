package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/app"
	"github.com/noah-isme/sma-session-scheduler/pkg/config"
	"github.com/noah-isme/sma-session-scheduler/pkg/database"
	"github.com/noah-isme/sma-session-scheduler/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "schedulerctl",
	Short: "schedulerctl runs scheduling operations against the scheduler database",
	Long: `schedulerctl applies migrations and drives semester, class and session
operations directly, without going through the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles what every subcommand needs.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	container *app.Container
}

func bootstrap() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	// Commands write straight to the database, so the read cache stays off.
	cfg.Cache.Enabled = false
	return &runtime{cfg: cfg, logger: logr, container: app.New(cfg, db, nil, logr)}, nil
}

func (r *runtime) close() {
	r.container.Close()
	_ = r.logger.Sync()
}

// withRuntime wraps a command body with bootstrap and teardown.
func withRuntime(fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, rt, args)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
