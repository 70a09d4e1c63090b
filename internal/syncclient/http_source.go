package syncclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"epetcare/internal/platform/httpclient"
	"epetcare/internal/platform/logger"
	"epetcare/internal/snapshot"
)

const (
	headerChecksum = "X-Snapshot-Checksum"
	uploadField    = "database"
)

type server struct {
	base   string
	client *httpclient.Client
	disc   *Discoverer
	auth   *Authenticator
}

// HTTPSource habla con la API de la clínica. Prueba los servidores en orden
// (server_url y luego fallbacks) y recuerda el último que respondió.
type HTTPSource struct {
	servers []*server
	retries int
	initial time.Duration
	log     logger.Logger

	mu      sync.Mutex
	current int
}

func NewHTTPSource(cfg Config, log logger.Logger) (*HTTPSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	urls := cfg.Servers()
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no server urls", ErrInvalidConfig)
	}

	s := &HTTPSource{
		retries: cfg.MaxRetries,
		initial: cfg.RetryInitial,
		log:     log.With(map[string]any{"source": "http"}),
	}
	for _, u := range urls {
		c, err := httpclient.NewWithBaseURL(u, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, u, err)
		}
		s.servers = append(s.servers, &server{
			base:   u,
			client: c,
			disc:   NewDiscoverer(),
			auth:   NewAuthenticator(cfg),
		})
	}
	return s, nil
}

func (s *HTTPSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servers[s.current].base
}

func (s *HTTPSource) Info(ctx context.Context) (RemoteInfo, error) {
	var info RemoteInfo
	err := s.call(ctx, "info", func(ctx context.Context, srv *server, h map[string]string) error {
		var err error
		info, err = srv.disc.Info(ctx, srv.client, h)
		return err
	})
	return info, err
}

func (s *HTTPSource) Fetch(ctx context.Context) (snapshot.Data, string, error) {
	var (
		data snapshot.Data
		sum  string
	)
	err := s.call(ctx, "fetch", func(ctx context.Context, srv *server, h map[string]string) error {
		prefix, err := s.prefix(ctx, srv, h)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		hdr, err := srv.client.Download(ctx, prefix+"/database/download/", h, &buf)
		if err != nil {
			return err
		}

		d, err := snapshot.Decode(&buf)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
		}
		got := d.Checksum()
		if want := hdr.Get(headerChecksum); want != "" && want != got {
			return fmt.Errorf("%w: checksum mismatch (header %s, computed %s)", ErrSnapshotInvalid, want, got)
		}
		data, sum = d, got
		return nil
	})
	return data, sum, err
}

type pushRequest struct {
	Changes []Change `json:"changes"`
}

type pushResponse struct {
	Status    string         `json:"status"`
	Results   []ChangeResult `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}

func (s *HTTPSource) Push(ctx context.Context, changes []Change) ([]ChangeResult, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	var out pushResponse
	op := func(ctx context.Context, srv *server, h map[string]string) error {
		prefix, err := s.prefix(ctx, srv, h)
		if err != nil {
			return err
		}
		out = pushResponse{}
		return srv.client.DoJSON(ctx, http.MethodPost, prefix+"/sync/offline-changes/", h, pushRequest{Changes: changes}, &out)
	}

	var err error
	if idempotent(changes) {
		err = s.call(ctx, "push", op)
	} else {
		// sin clave un reenvío puede duplicar cambios: un solo intento
		err = s.callOnce(ctx, "push", op)
	}
	if err != nil {
		return nil, err
	}
	if len(out.Results) != len(changes) {
		return out.Results, fmt.Errorf("syncclient: push: got %d results for %d changes", len(out.Results), len(changes))
	}
	return out.Results, nil
}

type uploadResponse struct {
	Status   string         `json:"status"`
	Checksum string         `json:"checksum"`
	Counts   map[string]int `json:"counts"`
}

func (s *HTTPSource) Upload(ctx context.Context, d snapshot.Data) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, d); err != nil {
		return "", err
	}
	sum := d.Checksum()

	var out uploadResponse
	err := s.call(ctx, "upload", func(ctx context.Context, srv *server, h map[string]string) error {
		prefix, err := s.prefix(ctx, srv, h)
		if err != nil {
			return err
		}
		headers := map[string]string{headerChecksum: sum}
		for k, v := range h {
			headers[k] = v
		}
		return srv.client.Upload(ctx, prefix+"/database/upload/", headers, uploadField, "epetcare-snapshot.json.gz",
			bytes.NewReader(buf.Bytes()), &out)
	})
	if err != nil {
		return "", err
	}
	if out.Checksum != "" && out.Checksum != sum {
		return out.Checksum, fmt.Errorf("%w: server stored checksum %s, sent %s", ErrSnapshotInvalid, out.Checksum, sum)
	}
	return sum, nil
}

func (s *HTTPSource) Close() error {
	for _, srv := range s.servers {
		srv.client.HTTP.CloseIdleConnections()
	}
	return nil
}

func (s *HTTPSource) prefix(ctx context.Context, srv *server, h map[string]string) (string, error) {
	if p, ok := srv.disc.Prefix(); ok {
		return p, nil
	}
	if _, err := srv.disc.Info(ctx, srv.client, h); err != nil {
		return "", err
	}
	p, _ := srv.disc.Prefix()
	return p, nil
}

type serverOp func(ctx context.Context, srv *server, headers map[string]string) error

// call ejecuta op contra el servidor actual con reintentos y, si sigue
// fallando por indisponibilidad o ruta inexistente, pasa al siguiente.
// ErrUnauthorized y ErrSnapshotInvalid no hacen failover.
func (s *HTTPSource) call(ctx context.Context, name string, op serverOp) error {
	s.mu.Lock()
	start := s.current
	s.mu.Unlock()

	var lastErr error
	for i := range s.servers {
		idx := (start + i) % len(s.servers)
		srv := s.servers[idx]

		err := s.retry(ctx, srv, op)
		if err == nil {
			s.mu.Lock()
			if s.current != idx {
				s.log.Info("sync server switched", map[string]any{"op": name, "server": srv.base})
			}
			s.current = idx
			s.mu.Unlock()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSnapshotInvalid) {
			return err
		}
		s.log.Warn("sync server failed", map[string]any{"op": name, "server": srv.base, "error": err.Error()})
		lastErr = err
	}
	return lastErr
}

// callOnce ejecuta op una sola vez contra el servidor actual, sin
// reintentos ni failover.
func (s *HTTPSource) callOnce(ctx context.Context, name string, op serverOp) error {
	s.mu.Lock()
	srv := s.servers[s.current]
	s.mu.Unlock()

	err := s.tryOnce(ctx, srv, op)
	if err != nil && ctx.Err() == nil {
		s.log.Warn("sync server failed", map[string]any{"op": name, "server": srv.base, "error": err.Error()})
	}
	return err
}

func (s *HTTPSource) retry(ctx context.Context, srv *server, op serverOp) error {
	attempt := func() error {
		err := s.tryOnce(ctx, srv, op)
		if err == nil || errors.Is(err, ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.MaxElapsedTime = 0
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retries)), ctx))
}

// tryOnce ejecuta op; con un token vencido hace login y un intento más. Un
// 401 garantiza que el servidor no aplicó nada.
func (s *HTTPSource) tryOnce(ctx context.Context, srv *server, op serverOp) error {
	hadSession := srv.auth.hasSession()
	err := s.attempt(ctx, srv, op)
	if errors.Is(err, ErrUnauthorized) && hadSession {
		srv.auth.Invalidate()
		err = s.attempt(ctx, srv, op)
	}
	return err
}

func (s *HTTPSource) attempt(ctx context.Context, srv *server, op serverOp) error {
	h, err := srv.auth.Headers(ctx, srv.client)
	if err != nil {
		return err
	}
	return classify(op(ctx, srv, h))
}
