package syncclient

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"epetcare/internal/adapters/storage/postgres"
	"epetcare/internal/platform/logger"
	"epetcare/internal/snapshot"
)

// PostgresSource lee y escribe directo en la base de la clínica. La conexión
// se abre de forma perezosa y se descarta ante cualquier error de red para
// reconectar en la siguiente operación.
type PostgresSource struct {
	cfg       postgres.Config
	reconnect time.Duration
	log       logger.Logger

	mu sync.Mutex
	db *sql.DB
}

func NewPostgresSource(cfg Config, log logger.Logger) (*PostgresSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	pg, err := cfg.Postgres.Resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %v", ErrInvalidConfig, err)
	}
	return &PostgresSource{
		cfg:       pg,
		reconnect: cfg.ReconnectTimeout,
		log:       log.With(map[string]any{"source": "postgres", "db": pg.Redacted()}),
	}, nil
}

func (s *PostgresSource) Name() string {
	return fmt.Sprintf("postgres://%s:%d/%s", s.cfg.Host, s.cfg.Port, s.cfg.Database)
}

func (s *PostgresSource) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := postgres.OpenWithRetry(ctx, s.cfg.DSN(), s.reconnect, s.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.log.Info("postgres connected", nil)
	s.db = db
	return db, nil
}

// drop cierra la conexión si el error no es de datos.
func (s *PostgresSource) drop(db *sql.DB, err error) {
	if err == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr == nil {
		return
	}
	s.mu.Lock()
	if s.db == db {
		_ = s.db.Close()
		s.db = nil
		s.log.Warn("postgres connection lost", map[string]any{"error": err.Error()})
	}
	s.mu.Unlock()
}

func (s *PostgresSource) Info(ctx context.Context) (RemoteInfo, error) {
	d, sum, err := s.Fetch(ctx)
	if err != nil {
		return RemoteInfo{}, err
	}
	return RemoteInfo{
		Timestamp:     time.Now().UTC(),
		DBType:        "postgres",
		SyncMethod:    "direct",
		SchemaVersion: d.Version,
		Tables:        snapshot.Tables,
		Counts:        d.Counts(),
		Checksum:      sum,
	}, nil
}

func (s *PostgresSource) Fetch(ctx context.Context) (snapshot.Data, string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return snapshot.Data{}, "", err
	}
	d, err := postgres.NewSnapshotStore(db).Export(ctx)
	if err != nil {
		s.drop(db, err)
		return snapshot.Data{}, "", fmt.Errorf("%w: export: %v", ErrUnavailable, err)
	}
	if err := d.Validate(); err != nil {
		return snapshot.Data{}, "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	return d, d.Checksum(), nil
}

// Push no está soportado: los cambios offline pasan por los servicios de la
// API, que validan y notifican.
func (s *PostgresSource) Push(context.Context, []Change) ([]ChangeResult, error) {
	return nil, fmt.Errorf("%w: push over direct postgres", ErrNotSupported)
}

func (s *PostgresSource) Upload(ctx context.Context, d snapshot.Data) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	if err := postgres.NewSnapshotStore(db).Replace(ctx, d); err != nil {
		s.drop(db, err)
		return "", fmt.Errorf("syncclient: postgres replace: %w", err)
	}
	return d.Checksum(), nil
}

func (s *PostgresSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
