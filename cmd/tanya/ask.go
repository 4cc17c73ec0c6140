package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/models"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			question := buildQuery(args)
			if question == "" {
				return models.ErrEmptyQuery
			}

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

			ctx := contextOrBackground(cmd.Context())
			if err := ensureIndex(ctx, components, logger); err != nil {
				return err
			}
			answer, err := components.Composer.Ask(ctx, nil, question)
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), answer, outFormat, cfg.CLI.MaxSources)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
