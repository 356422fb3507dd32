package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inquira/inquira/internal/rag"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index documents for question answering",
		Long: `Index files or directories into the local document corpus.

Each file is chunked on semantic boundaries, embedded, and added to
both the keyword and vector indexes. Re-indexing a file with the same
name replaces its previous version.

Directories are walked recursively; hidden directories and files
without a registered extractor are skipped.

Examples:
  inquira index notes.md
  inquira index ./docs ./runbooks`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runIndex(ctx, cmd, args)
		},
	}

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string) error {
	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	files, err := collectFiles(engine, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no indexable files found under %s", strings.Join(paths, ", "))
	}

	out := cmd.OutOrStdout()
	start := time.Now()
	indexed, chunks, skipped := 0, 0, 0

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := engine.IndexFile(ctx, path)
		if err != nil {
			skipped++
			fmt.Fprintf(out, "  skip %s: %v\n", path, err)
			slog.Warn("file not indexed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		chunks += n
		fmt.Fprintf(out, "  %s (%d chunks)\n", path, n)
	}

	fmt.Fprintf(out, "\nIndexed %d of %d files (%d chunks) in %s\n",
		indexed, len(files), chunks, time.Since(start).Round(time.Millisecond))
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped %d files, see messages above\n", skipped)
	}
	return nil
}

// collectFiles expands the argument list into indexable file paths.
// Directories are walked recursively; hidden entries are skipped.
func collectFiles(engine *rag.Engine, paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}

		if !info.IsDir() {
			// Explicitly named files are included even without a known
			// extension; extraction decides whether the content is text.
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			name := d.Name()
			if d.IsDir() {
				if p != path && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || !engine.Supported(name) {
				return nil
			}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}

	return files, nil
}
