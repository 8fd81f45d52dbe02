package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kaiwa/internal/config"
	"github.com/teslashibe/go-kaiwa/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "kaiwa",
		Short:         "Real-time spoken conversation server",
		Long:          "kaiwa accepts speech-to-text fragments over a websocket, asks a chat model for a reply and streams the reply back as synthesized speech in a persona's voice.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.toml", "path to the TOML config file (empty for defaults)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newProbeCmd(),
		newSynthCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the config and installs the global logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := log.Init(log.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Dir:    cfg.Log.Dir,
	}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}
