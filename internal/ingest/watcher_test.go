package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitPath(t *testing.T, evCh <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-evCh:
		require.True(t, ok, "watcher channel closed")
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no watcher event")
		return ""
	}
}

func TestStartWatcher_EmitsCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))

	assert.Equal(t, path, awaitPath(t, evCh))
}

func TestStartWatcher_CoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: 50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "scan.png")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	}

	assert.Equal(t, path, awaitPath(t, evCh))
	select {
	case p := <-evCh:
		t.Fatalf("burst produced a second event: %s", p)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStartWatcher_InitialScanEmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("img"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, existing, awaitPath(t, evCh))
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
