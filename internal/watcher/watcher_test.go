package watcher_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lambGirl/umi-tools/internal/watcher"
	"github.com/lambGirl/umi-tools/pkg/logger"
)

func waitFor(t *testing.T, w *watcher.Watcher, match func(watcher.Event) bool) watcher.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestWatcher_FileChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	w, err := watcher.New(root, logger.Discard())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("2"), 0o644))

	e := waitFor(t, w, func(e watcher.Event) bool { return e.Path == path })
	require.Contains(t, []watcher.Op{watcher.OpChange, watcher.OpAdd}, e.Op)
}

func TestWatcher_NestedDirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "deep", "er")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	w, err := watcher.New(root, logger.Discard())
	require.NoError(t, err)
	defer w.Close()

	require.Contains(t, w.List(), nested)

	path := filepath.Join(nested, "b.ts")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	waitFor(t, w, func(e watcher.Event) bool { return e.Path == path })
}

func TestWatcher_CreatedDirectoryReportsFiles(t *testing.T) {
	root := t.TempDir()
	w, err := watcher.New(root, logger.Discard())
	require.NoError(t, err)
	defer w.Close()

	// Build the directory outside the tree and move it in, so the file
	// exists before the watcher can see the directory.
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "ui"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "ui", "widget.js"), []byte("x"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(staging, "ui"), filepath.Join(root, "ui")))

	want := filepath.Join(root, "ui", "widget.js")
	waitFor(t, w, func(e watcher.Event) bool { return e.Path == want && e.Op == watcher.OpAdd })
}

func TestWatcher_Remove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.js")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, err := watcher.New(root, logger.Discard())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Remove(path))
	e := waitFor(t, w, func(e watcher.Event) bool { return e.Path == path })
	require.Equal(t, watcher.OpUnlink, e.Op)
}

func TestWatcher_Exclude(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "fixtures", "x"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	w, err := watcher.New(root, logger.Discard(), watcher.WithExclude(func(dir string) bool {
		return filepath.Base(dir) == "fixtures"
	}))
	require.NoError(t, err)
	defer w.Close()

	for _, dir := range w.List() {
		require.False(t, strings.Contains(dir, "fixtures"), "excluded directory watched: %s", dir)
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	_, err := watcher.New(filepath.Join(t.TempDir(), "nope"), logger.Discard())
	require.Error(t, err)
}

func TestWatcher_CloseClosesChannels(t *testing.T) {
	w, err := watcher.New(t.TempDir(), logger.Discard())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	require.False(t, ok)
	_, ok = <-w.Errors()
	require.False(t, ok)
}
