package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		Long: `Display document and chunk counts, index sizes, and the embedding
model the corpus was built with. Documents whose index entries
disagree across stores are reported as inconsistent and should be
re-indexed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runStats(ctx, cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	engine, cfg, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		type statsOutput struct {
			Documents      int    `json:"documents"`
			Chunks         int    `json:"chunks"`
			Vectors        int    `json:"vectors"`
			KeywordChunks  int    `json:"keyword_chunks"`
			EmbeddingModel string `json:"embedding_model"`
			Inconsistent   int    `json:"inconsistent"`
			DataDir        string `json:"data_dir"`
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{
			Documents:      stats.Documents,
			Chunks:         stats.Chunks,
			Vectors:        stats.Vectors,
			KeywordChunks:  stats.KeywordChunks,
			EmbeddingModel: stats.EmbeddingModel,
			Inconsistent:   stats.Inconsistent,
			DataDir:        cfg.Storage.DataDir,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Corpus")
	fmt.Fprintln(out, "======")
	fmt.Fprintf(out, "Documents:       %d\n", stats.Documents)
	fmt.Fprintf(out, "Chunks:          %d\n", stats.Chunks)
	fmt.Fprintf(out, "Vectors:         %d\n", stats.Vectors)
	fmt.Fprintf(out, "Keyword chunks:  %d\n", stats.KeywordChunks)
	fmt.Fprintf(out, "Embedding model: %s\n", stats.EmbeddingModel)
	fmt.Fprintf(out, "Data directory:  %s\n", cfg.Storage.DataDir)

	if stats.Inconsistent > 0 {
		fmt.Fprintf(out, "\n%d documents have inconsistent index entries; re-index them\n",
			stats.Inconsistent)
	}
	return nil
}
