package syncclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"epetcare/internal/platform/logger"
	"epetcare/internal/snapshot"
)

// FileSource usa un archivo de snapshot compartido (carpeta de red, disco
// sincronizado) como origen.
type FileSource struct {
	path     string
	debounce time.Duration
	log      logger.Logger
}

func NewFileSource(cfg Config, log logger.Logger) (*FileSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	p, err := filepath.Abs(cfg.SharedFile)
	if err != nil {
		return nil, fmt.Errorf("%w: shared_file: %v", ErrInvalidConfig, err)
	}
	return &FileSource{
		path:     p,
		debounce: cfg.WatchDebounce,
		log:      log.With(map[string]any{"source": "file", "path": p}),
	}, nil
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Info(ctx context.Context) (RemoteInfo, error) {
	st, err := os.Stat(s.path)
	if err != nil {
		return RemoteInfo{}, s.statErr(err)
	}
	d, sum, err := s.Fetch(ctx)
	if err != nil {
		return RemoteInfo{}, err
	}
	mod := st.ModTime().UTC()
	return RemoteInfo{
		Timestamp:     mod,
		LastSync:      &mod,
		DBType:        "file",
		SyncMethod:    "snapshot",
		SchemaVersion: d.Version,
		Tables:        snapshot.Tables,
		Counts:        d.Counts(),
		Checksum:      sum,
	}, nil
}

func (s *FileSource) Fetch(context.Context) (snapshot.Data, string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return snapshot.Data{}, "", s.statErr(err)
	}
	defer f.Close()

	d, err := snapshot.Decode(f)
	if err != nil {
		return snapshot.Data{}, "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	if err := d.Validate(); err != nil {
		return snapshot.Data{}, "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	return d, d.Checksum(), nil
}

func (s *FileSource) Push(context.Context, []Change) ([]ChangeResult, error) {
	return nil, fmt.Errorf("%w: push to shared file", ErrNotSupported)
}

// Upload escribe el snapshot en un temporal del mismo directorio y lo
// renombra, así un lector nunca ve un archivo a medio copiar.
func (s *FileSource) Upload(_ context.Context, d snapshot.Data) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".epetcare-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if err := snapshot.Encode(tmp, d); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return "", fmt.Errorf("syncclient: replace shared file: %w", err)
	}
	return d.Checksum(), nil
}

func (s *FileSource) Close() error { return nil }

// Watch bloquea hasta que ctx se cancele y llama a onChange cuando el
// archivo se crea o modifica, agrupando ráfagas de eventos en una sola
// llamada tras debounce.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// se observa el directorio: un rename atómico reemplaza el inode
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("%w: watch: %v", ErrUnavailable, err)
	}
	base := filepath.Base(s.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			s.log.Debug("shared file event", map[string]any{"op": ev.Op.String()})
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("shared file watcher error", map[string]any{"error": err.Error()})

		case <-fire:
			fire = nil
			onChange()
		}
	}
}

func (s *FileSource) statErr(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s does not exist", ErrNoEndpoint, s.path)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
