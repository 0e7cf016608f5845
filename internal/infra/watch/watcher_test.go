package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCatalogWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp_description.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	var calls atomic.Int32
	got := make(chan string, 4)
	w, err := NewCatalogWatcher(path, 50*time.Millisecond, func(_ context.Context, p string) error {
		calls.Add(1)
		got <- p
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"a": {}}`), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))

	select {
	case p := <-got:
		abs, _ := filepath.Abs(path)
		require.Equal(t, abs, p)
	case <-time.After(3 * time.Second):
		t.Fatal("reindex was not triggered")
	}

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestNewCatalogWatcher_Validation(t *testing.T) {
	_, err := NewCatalogWatcher("", 0, func(context.Context, string) error { return nil }, nil)
	require.Error(t, err)
	_, err = NewCatalogWatcher("catalog.json", 0, nil, nil)
	require.Error(t, err)
}
