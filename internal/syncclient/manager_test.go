package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"epetcare/internal/adapters/storage/sqlite"
	"epetcare/internal/snapshot"
)

func openCache(t *testing.T) *sqlite.Cache {
	t.Helper()
	c, err := sqlite.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestManager_ImportsThenSkipsUnchanged(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	var updates []Result
	m.OnUpdate(func(r Result) { updates = append(updates, r) })

	res, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	require.True(t, res.Imported)
	require.Equal(t, fake.data.Checksum(), res.Checksum)
	require.Len(t, updates, 1)

	res, err = m.SyncOnce(ctx)
	require.NoError(t, err)
	require.False(t, res.Imported)
	require.Len(t, updates, 1)

	st := m.Status()
	require.Equal(t, 1, st.Syncs)
	require.Equal(t, 1, st.Skipped)
	require.Empty(t, st.LastError)

	changed := testSnapshot()
	changed.Pets[0].Name = "Milo II"
	fake.setData(changed)

	res, err = m.SyncOnce(ctx)
	require.NoError(t, err)
	require.True(t, res.Imported)

	pets, err := cache.ListPets(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Milo II", pets[0].Name)
}

func TestManager_PushesPendingChangesFirst(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	fake.rejectModel = "prescription"
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	_, err := cache.Enqueue(ctx, "create", "appointment", "", json.RawMessage(`{"pet_id":"p1","reason":"vaccine"}`))
	require.NoError(t, err)
	rejected, err := cache.Enqueue(ctx, "delete", "prescription", "rx9", nil)
	require.NoError(t, err)

	res, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Pushed)
	require.Equal(t, 1, res.PushFailed)
	require.Len(t, fake.received, 2)
	require.Equal(t, "rx9", fake.received[1].ID)

	pending, err := cache.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, rejected, pending[0].ID)
	require.Equal(t, "model rejected", pending[0].LastError)
}

func TestManager_FailedSyncKeepsCache(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	_, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	good := fake.data.Checksum()

	changed := testSnapshot()
	changed.Owners[0].FullName = "Otro"
	fake.setData(changed)
	fake.mu.Lock()
	fake.tamper = true
	fake.mu.Unlock()

	_, err = m.SyncOnce(ctx)
	require.ErrorIs(t, err, ErrSnapshotInvalid)

	meta, err := cache.Meta(ctx)
	require.NoError(t, err)
	require.Equal(t, good, meta.Checksum)

	d, err := cache.Export(ctx)
	require.NoError(t, err)
	require.Equal(t, good, d.Checksum())

	st := m.Status()
	require.Equal(t, 1, st.Failures)
	require.Contains(t, st.LastError, "snapshot invalid")
}

// blockingSource bloquea Info hasta que se libere, para observar la
// coalescencia de SyncOnce.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	infos   atomic.Int32
	data    snapshot.Data
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Info(context.Context) (RemoteInfo, error) {
	b.infos.Add(1)
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return RemoteInfo{Checksum: b.data.Checksum()}, nil
}

func (b *blockingSource) Fetch(context.Context) (snapshot.Data, string, error) {
	return b.data, b.data.Checksum(), nil
}

func (b *blockingSource) Push(context.Context, []Change) ([]ChangeResult, error) {
	return nil, ErrNotSupported
}

func (b *blockingSource) Upload(context.Context, snapshot.Data) (string, error) {
	return "", ErrNotSupported
}

func (b *blockingSource) Close() error { return nil }

func TestManager_ConcurrentSyncOnceIsCoalesced(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{}), data: testSnapshot()}
	m := NewManager(src, openCache(t), ManagerOptions{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan Result, 5)
	run := func() {
		defer wg.Done()
		r, err := m.SyncOnce(ctx)
		if err == nil {
			results <- r
		}
	}

	wg.Add(1)
	go run()
	<-src.entered

	for range 4 {
		wg.Add(1)
		go run()
	}
	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(results)

	require.Equal(t, int32(1), src.infos.Load())
	n := 0
	for r := range results {
		require.True(t, r.Imported)
		n++
	}
	require.Equal(t, 5, n)
}

func TestManager_StartStop(t *testing.T) {
	_, srv := newFakeClinic(t, "/api")
	m := NewManager(newTestSource(t, testConfig(srv.URL)), openCache(t), ManagerOptions{Interval: 10 * time.Millisecond}, nil)

	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)
	require.True(t, m.Status().Running)

	require.Eventually(t, func() bool {
		st := m.Status()
		return st.Syncs == 1 && st.Skipped >= 2
	}, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	require.False(t, m.Status().Running)
	m.Stop()
}

func TestManager_UploadSendsCache(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	local := testSnapshot()
	local.Owners[0].Phone = "555-0101"
	require.NoError(t, cache.Import(ctx, local, "", "local"))

	sum, err := m.Upload(ctx)
	require.NoError(t, err)
	require.Equal(t, local.Checksum(), sum)
	require.Equal(t, "555-0101", fake.uploaded.Owners[0].Phone)
}

func TestManager_PushOnlyLeavesCacheUntouched(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	_, err := cache.Enqueue(ctx, "update", "appointment", "a1", json.RawMessage(`{"status":"completed"}`))
	require.NoError(t, err)

	res, err := m.Push(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Pushed)
	require.False(t, res.Imported)
	require.Len(t, fake.received, 1)

	_, err = cache.Meta(ctx)
	require.ErrorIs(t, err, sqlite.ErrNoMeta)

	pending, err := cache.Pending(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, pending)
}

// markFailedBroken es una caché cuyo MarkFailed siempre falla.
type markFailedBroken struct {
	*sqlite.Cache
}

func (markFailedBroken) MarkFailed(ctx context.Context, id int64, msg string) error {
	return errors.New("disk full")
}

func TestManager_AcceptedChangesStaySyncedWhenMarkFailedFails(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	fake.rejectModel = "prescription"
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), markFailedBroken{cache}, ManagerOptions{}, nil)
	ctx := context.Background()

	_, err := cache.Enqueue(ctx, "delete", "prescription", "rx9", nil)
	require.NoError(t, err)
	accepted, err := cache.Enqueue(ctx, "create", "appointment", "", json.RawMessage(`{"pet_id":"p1"}`))
	require.NoError(t, err)

	_, err = m.Push(ctx)
	require.Error(t, err)

	pending, err := cache.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotEqual(t, accepted, pending[0].ID)
	require.Equal(t, "prescription", pending[0].Model)
}

func TestManager_PushSendsStableClientIDs(t *testing.T) {
	fake, srv := newFakeClinic(t, "/api")
	cache := openCache(t)
	m := NewManager(newTestSource(t, testConfig(srv.URL)), cache, ManagerOptions{}, nil)
	ctx := context.Background()

	id, err := cache.Enqueue(ctx, "create", "appointment", "", json.RawMessage(`{"pet_id":"p1"}`))
	require.NoError(t, err)
	installID, err := cache.InstallID(ctx)
	require.NoError(t, err)

	_, err = m.Push(ctx)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.received, 1)
	require.Equal(t, ClientKey(installID, id), fake.received[0].ClientID)
}
