package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inquira/inquira/internal/rag"
	"github.com/inquira/inquira/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit          int
	keywordWeight  float64
	semanticWeight float64
	format         string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Run one hybrid retrieval query against the indexed documents.

Keyword (BM25) and semantic (embedding) results are fetched in
parallel, normalized, and fused by weighted score. Each result is
labeled with its provenance: KEYWORD, SEMANTIC, or HYBRID when both
paths found it.

Examples:
  inquira search "rollback procedure"
  inquira search "how do we rotate credentials" -n 5
  inquira search "error budget" --keyword-weight 0.7 --semantic-weight 0.3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runSearch(ctx, cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.keywordWeight, "keyword-weight", 0, "Keyword score weight for this query (0-1)")
	cmd.Flags().Float64Var(&opts.semanticWeight, "semantic-weight", 0, "Semantic score weight for this query (0-1)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.keywordWeight != 0 || opts.semanticWeight != 0 {
		if sum := opts.keywordWeight + opts.semanticWeight; sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("keyword-weight and semantic-weight must sum to 1.0, got %.2f", sum)
		}
	}

	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	results, err := engine.Search(ctx, query, &search.Options{
		K:              opts.limit,
		KeywordWeight:  opts.keywordWeight,
		SemanticWeight: opts.semanticWeight,
	})
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		return printSearchJSON(cmd, ctx, engine, results)
	default:
		return printSearchText(cmd, ctx, engine, query, results)
	}
}

func printSearchText(cmd *cobra.Command, ctx context.Context, engine *rag.Engine, query string, results []*search.Result) error {
	out := cmd.OutOrStdout()

	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for %q:\n\n", len(results), query)

	names := newDocumentNames(engine)
	for i, r := range results {
		name := names.lookup(ctx, r)
		fmt.Fprintf(out, "%d. %s [%s] (score: %.3f)\n", i+1, name, r.Provenance, r.Score)
		if len(r.MatchedTerms) > 0 {
			fmt.Fprintf(out, "   matched: %s\n", strings.Join(r.MatchedTerms, ", "))
		}
		for _, line := range snippet(chunkText(r), 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printSearchJSON(cmd *cobra.Command, ctx context.Context, engine *rag.Engine, results []*search.Result) error {
	type jsonResult struct {
		ChunkID      string   `json:"chunk_id"`
		Document     string   `json:"document"`
		Score        float64  `json:"score"`
		Provenance   string   `json:"provenance"`
		KeywordRank  int      `json:"keyword_rank,omitempty"`
		SemanticRank int      `json:"semantic_rank,omitempty"`
		MatchedTerms []string `json:"matched_terms,omitempty"`
		Text         string   `json:"text"`
	}

	names := newDocumentNames(engine)
	output := make([]jsonResult, 0, len(results))
	for _, r := range results {
		output = append(output, jsonResult{
			ChunkID:      r.ChunkID,
			Document:     names.lookup(ctx, r),
			Score:        r.Score,
			Provenance:   string(r.Provenance),
			KeywordRank:  r.KeywordRank,
			SemanticRank: r.SemanticRank,
			MatchedTerms: r.MatchedTerms,
			Text:         chunkText(r),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// documentNames memoizes document-ID to name lookups for one command.
type documentNames struct {
	engine *rag.Engine
	byID   map[string]string
}

func newDocumentNames(engine *rag.Engine) *documentNames {
	return &documentNames{engine: engine, byID: make(map[string]string)}
}

func (d *documentNames) lookup(ctx context.Context, r *search.Result) string {
	if r.Chunk == nil {
		return r.ChunkID[:12]
	}
	if name, ok := d.byID[r.Chunk.DocumentID]; ok {
		return name
	}
	name := r.Chunk.DocumentID[:12]
	if doc, err := d.engine.GetDocument(ctx, r.Chunk.DocumentID); err == nil && doc != nil {
		name = doc.Name
	}
	d.byID[r.Chunk.DocumentID] = name
	return name
}

func chunkText(r *search.Result) string {
	if r.Chunk == nil {
		return ""
	}
	return r.Chunk.Text
}

// snippet returns the first n non-empty-trimmed lines of text.
func snippet(text string, n int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
