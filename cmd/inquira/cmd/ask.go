package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/inquira/inquira/internal/agent"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	quiet   bool
	sources bool
	trace   bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Answer a question through the full retrieval loop: plan queries,
gather evidence, draft, synthesize, and judge. When the judge rejects
an answer the loop retries with the critique, up to the retry limit.

The answer streams to stdout; progress goes to stderr. If the retry
budget runs out, the best available draft is printed with a warning.

Examples:
  inquira ask "when was the payment outage and what caused it?"
  inquira ask --sources "which services depend on the auth cache?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runAsk(ctx, cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output on stderr")
	cmd.Flags().BoolVar(&opts.sources, "sources", false, "List the evidence documents after the answer")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Show every retrieval query that was executed")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	// Progress is interactive chrome: keep piped output clean.
	showProgress := !opts.quiet && isatty.IsTerminal(os.Stderr.Fd())

	var events agent.EventFunc
	if showProgress {
		events = func(e agent.StageEvent) {
			switch e.Type {
			case agent.EventPlanning:
				fmt.Fprintf(errOut, "▸ planning (attempt %d)\n", e.Attempt+1)
			case agent.EventToolCall:
				fmt.Fprintf(errOut, "▸ searching: %s\n", e.Text)
			case agent.EventDraft:
				fmt.Fprintf(errOut, "▸ drafting answer\n")
			case agent.EventJudgeVerdict:
				fmt.Fprintf(errOut, "▸ judge: %s\n", e.Text)
			}
		}
	}

	result, err := engine.AskStream(ctx, question, events, func(delta string) {
		fmt.Fprint(out, delta)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	if result.Degraded {
		fmt.Fprintf(errOut, "\nwarning: answer did not pass verification after %d retries; treat with caution\n",
			result.Retries)
		if last := lastCritique(result.Verdicts); last != "" {
			fmt.Fprintf(errOut, "judge critique: %s\n", last)
		}
	}

	if opts.sources {
		printSources(out, result.Evidence)
	}
	if opts.trace {
		printTrace(out, result.Trace)
	}
	return nil
}

func lastCritique(verdicts []agent.Verdict) string {
	for i := len(verdicts) - 1; i >= 0; i-- {
		if verdicts[i].Critique != "" {
			return verdicts[i].Critique
		}
	}
	return ""
}

func printSources(out io.Writer, evidence []agent.Evidence) {
	if len(evidence) == 0 {
		return
	}

	// One line per document, in first-seen evidence order.
	seen := make(map[string]bool)
	fmt.Fprintf(out, "\nSources:\n")
	for _, ev := range evidence {
		name := ev.DocumentName
		if name == "" {
			name = ev.DocumentID
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		fmt.Fprintf(out, "  - %s\n", name)
	}
}

func printTrace(out io.Writer, trace []agent.TraceEntry) {
	if len(trace) == 0 {
		return
	}

	fmt.Fprintf(out, "\nRetrieval trace:\n")
	for i, entry := range trace {
		fmt.Fprintf(out, "  %d. %q (%d results, %d new)\n", i+1, entry.Query, entry.Results, entry.Added)
	}
}
