package dbsync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"epetcare/internal/snapshot"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data       snapshot.Data
	replaceErr error
	replaced   int
}

func (f *fakeStore) Export(ctx context.Context) (snapshot.Data, error) { return f.data, nil }
func (f *fakeStore) Kind() string                                      { return "memory" }

func (f *fakeStore) Replace(ctx context.Context, d snapshot.Data) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.data = d
	f.replaced++
	return nil
}

func seed() snapshot.Data {
	return snapshot.Data{
		Version: snapshot.Version,
		Owners:  []snapshot.Owner{{ID: "o1", FullName: "Ana"}},
		Pets:    []snapshot.Pet{{ID: "p1", OwnerID: "o1", Name: "Milo", Species: "dog", Sex: "male"}},
	}
}

func encode(t *testing.T, d snapshot.Data) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, snapshot.Encode(&buf, d))
	return &buf
}

func TestInfo(t *testing.T) {
	store := &fakeStore{data: seed()}
	svc := NewService(store, "", nil)

	info, err := svc.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, "memory", info.DBType)
	require.Equal(t, SyncMethod, info.SyncMethod)
	require.Equal(t, 1, info.Counts["pets"])
	require.Equal(t, store.data.Checksum(), info.Checksum)
	require.Nil(t, info.LastSync)

	_, _, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	info, _ = svc.Info(context.Background())
	require.NotNil(t, info.LastSync)
}

func TestUpload_ReplacesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{data: seed()}
	svc := NewService(store, dir, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC) }

	next := seed()
	next.Pets = append(next.Pets, snapshot.Pet{ID: "p2", OwnerID: "o1", Name: "Luna", Species: "cat", Sex: "female"})

	res, err := svc.Upload(context.Background(), encode(t, next), next.Checksum())
	require.NoError(t, err)
	require.Equal(t, 1, store.replaced)
	require.Equal(t, 2, res.Counts["pets"])
	require.NotEmpty(t, res.BackupPath)

	f, err := os.Open(res.BackupPath)
	require.NoError(t, err)
	defer f.Close()
	backed, err := snapshot.Decode(f)
	require.NoError(t, err)
	require.Len(t, backed.Pets, 1)

	tmp, _ := filepath.Glob(filepath.Join(dir, ".backup-*"))
	require.Empty(t, tmp)
}

func TestUpload_InvalidNeverReplaces(t *testing.T) {
	store := &fakeStore{data: seed()}
	svc := NewService(store, "", nil)

	broken := seed()
	broken.Pets[0].OwnerID = "ghost"
	_, err := svc.Upload(context.Background(), encode(t, broken), "")
	require.ErrorIs(t, err, snapshot.ErrInvalid)

	_, err = svc.Upload(context.Background(), encode(t, seed()), "deadbeef")
	require.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = svc.Upload(context.Background(), bytes.NewBufferString("plain text"), "")
	require.ErrorIs(t, err, snapshot.ErrInvalid)

	require.Equal(t, 0, store.replaced)
}

func TestUpload_ReplaceFailureSurfaces(t *testing.T) {
	store := &fakeStore{data: seed(), replaceErr: errors.New("tx aborted")}
	svc := NewService(store, "", nil)

	_, err := svc.Upload(context.Background(), encode(t, seed()), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "replace")
}
