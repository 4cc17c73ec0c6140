package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/memory"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt)
			defer stop()

			if err := ensureIndex(ctx, components, logger); err != nil {
				return err
			}
			repl := cli.NewREPL(components.Composer, memory.New(cfg.Memory.MaxTurns), cfg.CLI.MaxSources, logger)
			return repl.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func ensureIndex(ctx context.Context, components *Components, logger *zap.Logger) error {
	built, err := components.Indexer.EnsureIndex(ctx)
	if err != nil {
		return err
	}
	if built {
		logger.Info("index built")
	}
	return nil
}
