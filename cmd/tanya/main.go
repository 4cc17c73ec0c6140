// Package main is the tanya CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/pkg/utils"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tanya",
		Short:         "Answer questions about a folder of documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config.yaml when present)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newInitCmd(opts),
		newServeCmd(opts),
		newChatCmd(opts),
		newAskCmd(opts),
		newIndexCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the config and builds the logger. Interactive commands get a console logger
// that stays quiet below warnings unless debug is on.
func (o *rootOptions) setup(interactive bool) (*config.Config, *zap.Logger, error) {
	cfg, path, err := loadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	debug := cfg.Debug || o.debug
	newLogger := utils.NewLogger
	if interactive {
		newLogger = utils.NewConsoleLogger
	}
	logger, err := newLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if path == "" {
		path = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
