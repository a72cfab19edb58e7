package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/rescuelens/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for rescuelens
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescuelens",
		Short: "Analyze multi-agent rescue simulation logs",
		Long: `Rescuelens analyzes the JSON Lines logs written by multi-agent rescue
simulations.

It walks a sweep laid out as <root>/<complexity>/<agent-bucket>/<run files>,
extracts per-run metrics (rescues, steps, rooms explored, communication),
and reports the mean and standard deviation of every metric per cell.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .rescuelens/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")

	cmd.AddCommand(NewAnalyzeCommand())
	cmd.AddCommand(NewInspectCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// loadConfig reads --config, or .rescuelens/config.yaml in the working
// directory, and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

// dbFlag returns --db when it was given, made absolute against the working
// directory. store.db_path in the config file stays relative to the
// rescuelens home.
func dbFlag(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("db") {
		return nil, nil
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" || dbPath == ":memory:" || filepath.IsAbs(dbPath) {
		return &dbPath, nil
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve --db %s: %w", dbPath, err)
	}
	return &abs, nil
}
