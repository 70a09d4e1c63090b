package syncclient

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFileSource(t *testing.T, debounce time.Duration) *FileSource {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Source = SourceFile
	cfg.SharedFile = filepath.Join(t.TempDir(), "shared.json.gz")
	cfg.WatchDebounce = debounce
	src, err := NewFileSource(cfg, nil)
	require.NoError(t, err)
	return src
}

func TestFileSource_UploadThenFetch(t *testing.T) {
	src := newFileSource(t, 50*time.Millisecond)
	ctx := context.Background()

	_, _, err := src.Fetch(ctx)
	require.ErrorIs(t, err, ErrNoEndpoint)

	d := testSnapshot()
	sum, err := src.Upload(ctx, d)
	require.NoError(t, err)

	got, gotSum, err := src.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, sum, gotSum)
	require.Len(t, got.Appointments, 1)

	info, err := src.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, sum, info.Checksum)
	require.Equal(t, 1, info.Counts["pets"])

	_, err = src.Push(ctx, nil)
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestFileSource_UploadRejectsInvalid(t *testing.T) {
	src := newFileSource(t, 50*time.Millisecond)
	d := testSnapshot()
	d.Pets[0].OwnerID = "ghost"
	_, err := src.Upload(context.Background(), d)
	require.ErrorIs(t, err, ErrSnapshotInvalid)
}

func TestFileSource_WatchDebouncesBursts(t *testing.T) {
	src := newFileSource(t, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, func() { calls.Add(1) }) }()

	// hasta que el watcher esté activo
	require.Eventually(t, func() bool {
		if calls.Load() > 0 {
			return true
		}
		_, _ = src.Upload(context.Background(), testSnapshot())
		return false
	}, 5*time.Second, 250*time.Millisecond)

	// esperar a que se asiente cualquier evento pendiente
	time.Sleep(300 * time.Millisecond)
	before := calls.Load()

	for range 5 {
		_, err := src.Upload(context.Background(), testSnapshot())
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return calls.Load() == before+1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, before+1, calls.Load())

	cancel()
	require.NoError(t, <-done)
}
