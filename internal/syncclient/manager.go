package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"epetcare/internal/adapters/storage/sqlite"
	"epetcare/internal/platform/logger"
	"epetcare/internal/snapshot"
)

// LocalCache es la copia local que el manager mantiene al día.
type LocalCache interface {
	Import(ctx context.Context, d snapshot.Data, checksum, source string) error
	Meta(ctx context.Context) (sqlite.Meta, error)
	Export(ctx context.Context) (snapshot.Data, error)
	Pending(ctx context.Context, limit int) ([]sqlite.QueuedChange, error)
	MarkSynced(ctx context.Context, ids ...int64) error
	MarkFailed(ctx context.Context, id int64, msg string) error
	InstallID(ctx context.Context) (string, error)
}

type Result struct {
	Source     string         `json:"source"`
	Checksum   string         `json:"checksum"`
	Imported   bool           `json:"imported"`
	Pushed     int            `json:"pushed"`
	PushFailed int            `json:"push_failed"`
	Counts     map[string]int `json:"counts,omitempty"`
}

type Status struct {
	Source       string    `json:"source"`
	Running      bool      `json:"running"`
	LastAttempt  time.Time `json:"last_attempt"`
	LastSuccess  time.Time `json:"last_success"`
	LastChecksum string    `json:"last_checksum"`
	LastError    string    `json:"last_error,omitempty"`
	Syncs        int       `json:"syncs"`
	Skipped      int       `json:"skipped"`
	Failures     int       `json:"failures"`
}

type ManagerOptions struct {
	Interval      time.Duration
	PushBatchSize int
}

// Manager coordina push de cambios offline y descarga de snapshots hacia
// la caché local. Si una sincronización falla la caché queda como estaba.
type Manager struct {
	src   Source
	cache LocalCache
	opts  ManagerOptions
	log   logger.Logger
	now   func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	status   Status
	onUpdate []func(Result)
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewManager(src Source, cache LocalCache, opts ManagerOptions, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultConfig().Interval
	}
	if opts.PushBatchSize <= 0 {
		opts.PushBatchSize = DefaultConfig().PushBatchSize
	}
	return &Manager{
		src:   src,
		cache: cache,
		opts:  opts,
		log:   log.With(map[string]any{"component": "sync_manager"}),
		now:   time.Now,
	}
}

// OnUpdate registra un callback llamado tras cada import exitoso.
func (m *Manager) OnUpdate(fn func(Result)) {
	m.mu.Lock()
	m.onUpdate = append(m.onUpdate, fn)
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.Source = m.src.Name()
	st.Running = m.cancel != nil
	return st
}

// SyncOnce sincroniza una vez. Llamadas concurrentes comparten la misma
// ejecución y resultado.
func (m *Manager) SyncOnce(ctx context.Context) (Result, error) {
	v, err, _ := m.group.Do("sync", func() (any, error) {
		return m.sync(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Push envía solo los cambios pendientes, sin descargar. Comparte la clave
// de SyncOnce, así nunca corre en paralelo con una sync.
func (m *Manager) Push(ctx context.Context) (Result, error) {
	v, err, _ := m.group.Do("sync", func() (any, error) {
		res := Result{Source: m.src.Name()}
		pushed, failed, err := m.push(ctx)
		res.Pushed, res.PushFailed = pushed, failed
		if err != nil {
			return res, m.fail(err)
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (m *Manager) sync(ctx context.Context) (Result, error) {
	m.mu.Lock()
	m.status.LastAttempt = m.now()
	m.mu.Unlock()

	res := Result{Source: m.src.Name()}

	pushed, failed, err := m.push(ctx)
	res.Pushed, res.PushFailed = pushed, failed
	if err != nil {
		return res, m.fail(err)
	}

	info, err := m.src.Info(ctx)
	if err != nil {
		return res, m.fail(err)
	}

	if meta, err := m.cache.Meta(ctx); err == nil && info.Checksum != "" && meta.Checksum == info.Checksum {
		res.Checksum = info.Checksum
		m.mu.Lock()
		m.status.Skipped++
		m.status.LastSuccess = m.now()
		m.status.LastChecksum = info.Checksum
		m.status.LastError = ""
		m.mu.Unlock()
		m.log.Debug("sync skipped, checksum unchanged", map[string]any{"checksum": info.Checksum})
		return res, nil
	} else if err != nil && !errors.Is(err, sqlite.ErrNoMeta) {
		return res, m.fail(err)
	}

	d, sum, err := m.src.Fetch(ctx)
	if err != nil {
		return res, m.fail(err)
	}
	if err := m.cache.Import(ctx, d, sum, m.src.Name()); err != nil {
		return res, m.fail(fmt.Errorf("import: %w", err))
	}
	res.Checksum, res.Imported, res.Counts = sum, true, d.Counts()

	m.mu.Lock()
	m.status.Syncs++
	m.status.LastSuccess = m.now()
	m.status.LastChecksum = sum
	m.status.LastError = ""
	callbacks := append([]func(Result){}, m.onUpdate...)
	m.mu.Unlock()

	m.log.Info("sync completed", map[string]any{"checksum": sum, "source": res.Source, "pushed": pushed})
	for _, fn := range callbacks {
		fn(res)
	}
	return res, nil
}

// push envía los cambios pendientes. Un origen que no acepta cambios no es
// un error de sync.
func (m *Manager) push(ctx context.Context) (int, int, error) {
	pending, err := m.cache.Pending(ctx, m.opts.PushBatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	installID, err := m.cache.InstallID(ctx)
	if err != nil {
		return 0, 0, err
	}
	changes := make([]Change, 0, len(pending))
	for _, q := range pending {
		changes = append(changes, Change{
			Type:     q.ChangeType,
			Model:    q.Model,
			ID:       q.TargetID,
			Data:     q.Data,
			ClientID: ClientKey(installID, q.ID),
		})
	}

	results, err := m.src.Push(ctx, changes)
	if errors.Is(err, ErrNotSupported) {
		m.log.Debug("source does not accept offline changes", map[string]any{"pending": len(pending)})
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("push: %w", err)
	}
	if len(results) != len(pending) {
		return 0, 0, fmt.Errorf("push: got %d results for %d changes", len(results), len(pending))
	}

	var (
		synced   []int64
		rejected []int
	)
	for i, r := range results {
		if r.OK() {
			synced = append(synced, pending[i].ID)
		} else {
			rejected = append(rejected, i)
		}
	}
	// primero los aceptados: si no quedan marcados se reenvían
	if err := m.cache.MarkSynced(ctx, synced...); err != nil {
		return 0, 0, err
	}
	failed := 0
	for _, i := range rejected {
		if err := m.cache.MarkFailed(ctx, pending[i].ID, results[i].Message); err != nil {
			return len(synced), failed, err
		}
		failed++
	}
	if failed > 0 {
		m.log.Warn("some offline changes were rejected", map[string]any{"failed": failed})
	}
	return len(synced), failed, nil
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.status.Failures++
	m.status.LastError = err.Error()
	m.mu.Unlock()
	m.log.Warn("sync failed", map[string]any{"error": err.Error()})
	return err
}

// Upload sube el contenido de la caché al origen.
func (m *Manager) Upload(ctx context.Context) (string, error) {
	d, err := m.cache.Export(ctx)
	if err != nil {
		return "", err
	}
	return m.src.Upload(ctx, d)
}

var ErrAlreadyRunning = errors.New("syncclient: manager already running")

// Start lanza el loop periódico: una sync inmediata y luego cada Interval.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
	return nil
}

// Stop detiene el loop y espera a que termine.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(m.opts.Interval)
	defer t.Stop()

	for {
		// los errores ya quedan en Status
		_, _ = m.SyncOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
