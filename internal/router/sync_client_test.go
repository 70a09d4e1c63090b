package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"epetcare/internal/adapters/auth/jwt"
	"epetcare/internal/adapters/storage/sqlite"
	"epetcare/internal/router"
	"epetcare/internal/syncclient"
)

// dropFirstPush aplica el primer POST de cambios offline y corta la conexión
// antes de responder, como si la respuesta se perdiera en la red.
type dropFirstPush struct {
	next http.Handler

	mu      sync.Mutex
	posts   int
	dropped bool
}

func (d *dropFirstPush) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/api/sync/offline-changes/" {
		d.mu.Lock()
		d.posts++
		drop := !d.dropped
		d.dropped = true
		d.mu.Unlock()

		if drop {
			d.next.ServeHTTP(httptest.NewRecorder(), r)
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
	}
	d.next.ServeHTTP(w, r)
}

func (d *dropFirstPush) postCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posts
}

func newDroppingServer(t *testing.T) (*dropFirstPush, *httptest.Server) {
	t.Helper()

	jwtSvc := jwt.NewService("test-secret", time.Hour)
	d := &dropFirstPush{next: router.NewRouter(router.Options{
		AuthVerifier: jwtSvc,
		TokenIssuer:  jwtSvc,
		BackupDir:    t.TempDir(),
	})}
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)
	return d, ts
}

func syncSource(t *testing.T, baseURL, token string) *syncclient.HTTPSource {
	t.Helper()

	cfg := syncclient.DefaultConfig()
	cfg.ServerURL = baseURL
	cfg.Token = token
	cfg.MaxRetries = 2
	cfg.RetryInitial = time.Millisecond
	cfg.RequestTimeout = 2 * time.Second

	src, err := syncclient.NewHTTPSource(cfg, nil)
	if err != nil {
		t.Fatalf("new http source: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestSyncClient_LostPushResponseAppliesOnce(t *testing.T) {
	d, ts := newDroppingServer(t)
	ctx := context.Background()

	register(t, ts.URL, "dr-ruiz", "vet")
	token := login(t, ts.URL, "/api/token/", "access", "dr-ruiz")
	h := bearer(token)

	ownerID := createID(t, ts.URL, "/api/owners/", h, map[string]any{"full_name": "Ana", "email": "ana@example.com"})
	petID := createID(t, ts.URL, "/api/pets/", h, map[string]any{"owner_id": ownerID, "name": "Milo", "species": "dog", "sex": "male"})

	cache, err := sqlite.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	data, _ := json.Marshal(map[string]any{
		"pet_id":    petID,
		"date_time": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"reason":    "offline visit",
	})
	if _, err := cache.Enqueue(ctx, "create", "appointment", "", data); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	m := syncclient.NewManager(syncSource(t, ts.URL, token), cache, syncclient.ManagerOptions{}, nil)
	res, err := m.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Pushed != 1 || res.PushFailed != 0 {
		t.Fatalf("expected 1 pushed change, got %+v", res)
	}
	if d.postCount() < 2 {
		t.Fatalf("expected the push to be resent after the lost response, got %d posts", d.postCount())
	}

	pending, err := cache.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected queue drained, got %+v", pending)
	}

	// una sola entrada en el journal y un solo turno
	st, body := doReq(t, ts.URL, "GET", "/api/sync/offline-changes/", h, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 list changes, got %d", st)
	}
	var items []map[string]any
	_ = json.Unmarshal(body, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 journaled change, got %d body=%s", len(items), string(body))
	}
	if id, _ := items[0]["client_id"].(string); !strings.HasPrefix(id, "epetsync:") {
		t.Fatalf("expected client id on journal entry, got %v", items[0])
	}

	st, body = doReq(t, ts.URL, "GET", "/api/appointments/", h, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 list appointments, got %d", st)
	}
	if n := strings.Count(string(body), "offline visit"); n != 1 {
		t.Fatalf("expected exactly one appointment, found %d body=%s", n, string(body))
	}
}

func TestSyncClient_PushWithoutClientIDIsNotResent(t *testing.T) {
	d, ts := newDroppingServer(t)

	register(t, ts.URL, "dr-sosa", "vet")
	token := login(t, ts.URL, "/api/token/", "access", "dr-sosa")

	src := syncSource(t, ts.URL, token)
	_, err := src.Push(context.Background(), []syncclient.Change{
		{Type: "delete", Model: "prescription", ID: "rx-1", Data: json.RawMessage(`{}`)},
	})
	if !errors.Is(err, syncclient.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := d.postCount(); got != 1 {
		t.Fatalf("expected a single attempt, got %d posts", got)
	}
}
