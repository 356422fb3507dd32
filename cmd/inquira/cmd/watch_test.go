package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquira/inquira/internal/extract"
)

// fakeIndexer records indexed paths and supports the default extensions.
type fakeIndexer struct {
	mu       sync.Mutex
	indexed  []string
	failPath string
	registry *extract.Registry
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{registry: extract.NewRegistry()}
}

func (f *fakeIndexer) IndexFile(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.failPath {
		return 0, fmt.Errorf("extraction failed")
	}
	f.indexed = append(f.indexed, path)
	return 1, nil
}

func (f *fakeIndexer) Supported(name string) bool {
	return f.registry.Supported(name)
}

func (f *fakeIndexer) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.indexed...)
}

func newTestWatcher(t *testing.T, indexer fileIndexer, debounce time.Duration) (*dirWatcher, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	w, err := newDirWatcher(indexer, buf, debounce)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, buf
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestWatchCmd_Registered(t *testing.T) {
	cmd := NewRootCmd()

	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)
	assert.Equal(t, "watch", watchCmd.Name())
	assert.NotNil(t, watchCmd.Flags().Lookup("debounce"))
}

func TestDirWatcher_DebouncesBursts(t *testing.T) {
	indexer := newFakeIndexer()
	w, _ := newTestWatcher(t, indexer, 20*time.Millisecond)

	// Three rapid writes to the same file collapse into one re-index
	for range 3 {
		w.handleEvent(fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Write})
	}

	waitFor(t, time.Second, func() bool { return len(indexer.paths()) == 1 })

	// And stays collapsed after the debounce window
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, indexer.paths(), 1)
}

func TestDirWatcher_IgnoresUnsupportedAndHidden(t *testing.T) {
	indexer := newFakeIndexer()
	w, _ := newTestWatcher(t, indexer, 10*time.Millisecond)

	w.handleEvent(fsnotify.Event{Name: "/docs/image.png", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "/docs/.draft.md", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Chmod})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, indexer.paths())
}

func TestDirWatcher_IndexFailureReported(t *testing.T) {
	indexer := newFakeIndexer()
	indexer.failPath = "/docs/bad.md"
	w, buf := newTestWatcher(t, indexer, 10*time.Millisecond)

	w.handleEvent(fsnotify.Event{Name: "/docs/bad.md", Op: fsnotify.Create})

	waitFor(t, time.Second, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("skip /docs/bad.md"))
	})
	assert.Empty(t, indexer.paths())
}

func TestDirWatcher_CloseCancelsPending(t *testing.T) {
	indexer := newFakeIndexer()
	w, _ := newTestWatcher(t, indexer, 50*time.Millisecond)

	w.handleEvent(fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Write})
	require.NoError(t, w.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, indexer.paths())
}

func TestDirWatcher_PicksUpRealWrites(t *testing.T) {
	indexer := newFakeIndexer()
	w, _ := newTestWatcher(t, indexer, 20*time.Millisecond)

	dir := t.TempDir()
	require.NoError(t, w.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("fresh note"), 0o644))

	waitFor(t, 3*time.Second, func() bool {
		for _, p := range indexer.paths() {
			if p == path {
				return true
			}
		}
		return false
	})

	cancel()
	require.NoError(t, <-done)
}
