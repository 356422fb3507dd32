package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Watch directories and re-index changed documents",
		Long: `Watch one or more directories and re-index documents as they are
created or modified. Events are debounced per file, so an editor that
writes in several bursts triggers a single re-index.

Hidden directories and files without a registered extractor are
ignored. Stop with Ctrl+C.

Examples:
  inquira watch ./docs
  inquira watch ./docs ./runbooks --debounce 2s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runWatch(ctx, cmd, args, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before a changed file is re-indexed")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dirs []string, debounce time.Duration) error {
	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	w, err := newDirWatcher(engine, cmd.OutOrStdout(), debounce)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	for _, dir := range dirs {
		if err := w.AddRecursive(dir); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n",
		strings.Join(dirs, ", "))
	return w.Run(ctx)
}

// fileIndexer is the slice of the engine the watcher needs.
type fileIndexer interface {
	IndexFile(ctx context.Context, path string) (int, error)
	Supported(name string) bool
}

// dirWatcher re-indexes documents on filesystem change events, with a
// per-file debounce so bursts of writes collapse into one re-index.
type dirWatcher struct {
	watcher  *fsnotify.Watcher
	indexer  fileIndexer
	out      io.Writer
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	ctx     context.Context
}

func newDirWatcher(indexer fileIndexer, out io.Writer, debounce time.Duration) (*dirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &dirWatcher{
		watcher:  watcher,
		indexer:  indexer,
		out:      out,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		ctx:      context.Background(),
	}, nil
}

// AddRecursive watches a directory tree, skipping hidden directories.
func (w *dirWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run processes events until the context is cancelled.
func (w *dirWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *dirWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories join the watch; new and modified documents get
	// scheduled for re-indexing.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory",
					slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !w.indexer.Supported(name) {
		return
	}
	w.schedule(event.Name)
}

// schedule arms (or re-arms) the debounce timer for one file.
func (w *dirWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.indexNow(path)
	})
}

func (w *dirWatcher) indexNow(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	ctx := w.ctx
	w.mu.Unlock()
	if closed {
		return
	}

	count, err := w.indexer.IndexFile(ctx, path)
	if err != nil {
		fmt.Fprintf(w.out, "  skip %s: %v\n", path, err)
		slog.Warn("file not re-indexed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w.out, "  %s (%d chunks)\n", path, count)
}

// Close stops the watcher and cancels all pending re-indexes.
func (w *dirWatcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
