package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the document index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(cfg, logger, false)
			if err != nil {
				return err
			}
			defer components.Close()

			stats, err := components.Indexer.Build(contextOrBackground(cmd.Context()), rebuild)
			if errors.Is(err, models.ErrIndexExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "Index already exists at %s (use --rebuild to replace it)\n", cfg.Index.Path)
				return nil
			}
			if err != nil {
				return err
			}
			logger.Debug("index build finished", zap.Duration("duration", stats.Duration))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %d chunks in %s\n",
				stats.Documents, stats.Chunks, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "replace an existing index")
	return cmd
}
