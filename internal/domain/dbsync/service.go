package dbsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"epetcare/internal/platform/logger"
	"epetcare/internal/snapshot"
)

const SyncMethod = "snapshot"

var (
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

type Service struct {
	store     Store
	backupDir string
	log       logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastSync *time.Time
	// serializa uploads; un backup y su replace no se mezclan con otro
	uploadMu sync.Mutex
}

func NewService(store Store, backupDir string, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		backupDir: backupDir,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Info(ctx context.Context) (Info, error) {
	d, err := s.store.Export(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("export: %w", err)
	}

	s.mu.Lock()
	last := s.lastSync
	s.mu.Unlock()

	return Info{
		Timestamp:     s.now().UTC(),
		LastSync:      last,
		DBType:        s.store.Kind(),
		SyncMethod:    SyncMethod,
		SchemaVersion: snapshot.Version,
		Tables:        snapshot.Tables,
		Counts:        d.Counts(),
		Checksum:      d.Checksum(),
	}, nil
}

// Snapshot exporta el estado actual listo para descargar.
func (s *Service) Snapshot(ctx context.Context) (snapshot.Data, string, error) {
	d, err := s.store.Export(ctx)
	if err != nil {
		return snapshot.Data{}, "", fmt.Errorf("export: %w", err)
	}
	d.Version = snapshot.Version
	d.CreatedAt = s.now().UTC()

	s.markSynced()
	return d, d.Checksum(), nil
}

// Upload valida el snapshot completo antes de tocar nada, hace backup del
// estado actual y recién entonces reemplaza.
func (s *Service) Upload(ctx context.Context, r io.Reader, expectedChecksum string) (UploadResult, error) {
	d, err := snapshot.Decode(r)
	if err != nil {
		return UploadResult{}, err
	}
	if err := d.Validate(); err != nil {
		return UploadResult{}, err
	}

	sum := d.Checksum()
	if expectedChecksum != "" && expectedChecksum != sum {
		return UploadResult{}, fmt.Errorf("%w: got %s, header says %s", ErrChecksumMismatch, sum, expectedChecksum)
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	backup, err := s.backup(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("backup: %w", err)
	}

	if err := s.store.Replace(ctx, d); err != nil {
		return UploadResult{}, fmt.Errorf("replace: %w", err)
	}
	s.markSynced()

	s.log.Info("snapshot uploaded", map[string]any{
		"checksum": sum,
		"backup":   backup,
		"pets":     len(d.Pets),
	})

	return UploadResult{Checksum: sum, Counts: d.Counts(), BackupPath: backup}, nil
}

// backup escribe el estado actual en backupDir. Sin directorio no hace nada.
func (s *Service) backup(ctx context.Context) (string, error) {
	if s.backupDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", err
	}

	current, err := s.store.Export(ctx)
	if err != nil {
		return "", err
	}
	current.Version = snapshot.Version
	current.CreatedAt = s.now().UTC()

	name := fmt.Sprintf("snapshot-%s.json.gz", current.CreatedAt.Format("20060102T150405.000000000Z"))
	final := filepath.Join(s.backupDir, name)

	tmp, err := os.CreateTemp(s.backupDir, ".backup-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := snapshot.Encode(tmp, current); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", err
	}
	return final, nil
}

func (s *Service) markSynced() {
	now := s.now().UTC()
	s.mu.Lock()
	s.lastSync = &now
	s.mu.Unlock()
}
