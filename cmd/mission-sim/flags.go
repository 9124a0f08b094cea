package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/rescue-mission-sim/internal/config"
	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
)

// OutputFormat selects how results are written to stdout.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// GlobalFlags holds flags shared by every subcommand.
type GlobalFlags struct {
	ConfigFile   string
	Seed         uint64
	Verbose      bool
	OutputFormat string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command.
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to a scenario file (yaml, json or toml)")
	cmd.PersistentFlags().Uint64Var(&globalFlags.Seed, "seed", 0, "Random seed; overrides the scenario seed when set")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", string(FormatText), "Output format (text|json)")
}

func outputFormat() (OutputFormat, error) {
	switch OutputFormat(globalFlags.OutputFormat) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text or json)", globalFlags.OutputFormat)
	}
}

// loadMissionConfig loads the scenario and applies flag overrides.
func loadMissionConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = globalFlags.Seed
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays reserved for results.
func newLogger(cmd *cobra.Command) logging.Logger {
	cfg := logging.ConfigFromEnv()
	if globalFlags.Verbose {
		cfg.Level = "debug"
	}
	cfg.Output = cmd.ErrOrStderr()
	return logging.New(cfg)
}
