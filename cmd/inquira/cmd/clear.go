package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all indexed documents",
		Long: `Delete every indexed document, both indexes, and the persisted
vector files. The data directory itself is kept.

This is also the recovery path after switching embedding models:
the stored index dimension is reset so the next 'inquira index' run
starts fresh with the new model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runClear(ctx, cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func runClear(ctx context.Context, cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()

	if !force && !confirm(cmd, "This deletes every indexed document. Continue?") {
		fmt.Fprintln(out, "Aborted")
		return nil
	}

	engine, cfg, err := openEngine(ctx)
	if err != nil {
		// A dimension mismatch blocks engine startup, and clear is the
		// documented way out. Wipe the on-disk state directly.
		if inqerrors.GetCode(err) == inqerrors.ErrCodeDimensionMismatch {
			if cfg == nil {
				if cfg, err = loadConfig(); err != nil {
					return err
				}
			}
			if err := removeIndexFiles(cfg.Storage.DataDir); err != nil {
				return err
			}
			fmt.Fprintln(out, "Cleared index files; re-index with the current embedding model")
			return nil
		}
		return err
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "All documents cleared")
	return nil
}

// removeIndexFiles deletes the engine's on-disk state without opening
// it: the SQLite database with its WAL sidecars and the vector files.
func removeIndexFiles(dataDir string) error {
	names := []string{
		"metadata.db", "metadata.db-wal", "metadata.db-shm",
		"vectors.hnsw", "vectors.hnsw.meta",
	}
	for _, name := range names {
		path := filepath.Join(dataDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// confirm prompts on stderr and reads a y/N answer from stdin.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
