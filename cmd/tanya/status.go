package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown output format %q; use text or json", format)
			}
			cfg, logger, err := opts.setup(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			stats := &search.Stats{}
			exists, err := search.Exists(cfg.Index.Path)
			if err != nil {
				return fmt.Errorf("failed to inspect index: %w", err)
			}
			if exists {
				store, err := storage.NewSQLiteStorage(cfg.Index.Path)
				if err != nil {
					return fmt.Errorf("failed to open index: %w", err)
				}
				defer store.Close()
				// Stats reads only the store, so no embedder is needed.
				stats, err = search.NewEngine(store, nil, &cfg.Retrieval).Stats(contextOrBackground(cmd.Context()))
				if err != nil {
					return err
				}
			}
			return writeStatus(cmd.OutOrStdout(), cfg.Index.Path, stats, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func writeStatus(w io.Writer, path string, stats *search.Stats, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path string `json:"path"`
			*search.Stats
		}{path, stats})
	}
	fmt.Fprintf(w, "Index:      %s\n", path)
	if !stats.Exists {
		fmt.Fprintln(w, "Status:     not built (run 'tanya index')")
		return nil
	}
	fmt.Fprintln(w, "Status:     ready")
	fmt.Fprintf(w, "Chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(w, "Sources:    %d\n", stats.Sources)
	fmt.Fprintf(w, "Model:      %s (%d dimensions)\n", stats.EmbeddingModel, stats.Dimensions)
	fmt.Fprintf(w, "Chunking:   size %d, overlap %d\n", stats.ChunkSize, stats.ChunkOverlap)
	if !stats.BuiltAt.IsZero() {
		fmt.Fprintf(w, "Built:      %s\n", stats.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "Disk usage: %d bytes\n", stats.DiskBytes)
	return nil
}
