package cmd

import (
	"errors"
	"fmt"
	"os"

	"searoute/logging"
	"searoute/reinforcement"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	log        logging.LogConfig
}

// RootCmd returns the root cobra command of the route planner.
func RootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "searoute",
		Short:         "Weather-aware ship routing with tabular Q-learning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Training config file path")
	cmd.PersistentFlags().StringVar(&opts.log.Level, "log-level", "info", "Log level")
	cmd.PersistentFlags().StringVar(&opts.log.Format, "log-format", "text", "Log format, text or json")
	cmd.PersistentFlags().StringVar(&opts.log.Path, "log-file", "", "Log to this file instead of stderr")
	cmd.AddCommand(routeCmd(opts))
	cmd.AddCommand(serveCmd(opts))
	return cmd
}

// loadTraining reads the training config. A missing default config file is not an error: the
// default params apply and the returned TrainingConfig is nil.
func (o *rootOptions) loadTraining(cmd *cobra.Command) (reinforcement.Params, *reinforcement.TrainingConfig, error) {
	if _, err := os.Stat(o.configPath); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return reinforcement.DefaultParams(), nil, nil
	}
	tc, err := reinforcement.FromYaml(o.configPath)
	if err != nil {
		return reinforcement.Params{}, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	params, err := tc.Params()
	if err != nil {
		return reinforcement.Params{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	return params, tc, nil
}
