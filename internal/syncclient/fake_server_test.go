package syncclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"epetcare/internal/snapshot"
)

// fakeClinic imita la API de sync de la clínica bajo un prefijo dado.
type fakeClinic struct {
	t      *testing.T
	prefix string

	mu          sync.Mutex
	data        snapshot.Data
	token       string
	tamper      bool
	failInfo    int
	truncate    int
	downloads   int
	rejectModel string
	infoHits    map[string]int
	logins      int
	received    []Change
	uploaded    *snapshot.Data
}

func newFakeClinic(t *testing.T, prefix string) (*fakeClinic, *httptest.Server) {
	t.Helper()
	f := &fakeClinic{
		t:        t,
		prefix:   prefix,
		data:     testSnapshot(),
		token:    "tok-1",
		infoHits: map[string]int{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func testSnapshot() snapshot.Data {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return snapshot.Data{
		Version: snapshot.Version,
		Owners:  []snapshot.Owner{{ID: "o1", FullName: "Luis Pérez", CreatedAt: now}},
		Pets: []snapshot.Pet{
			{ID: "p1", OwnerID: "o1", Name: "Milo", Species: "dog", Sex: "male", CreatedAt: now, UpdatedAt: now},
		},
		Appointments: []snapshot.Appointment{
			{ID: "a1", PetID: "p1", DateTime: now.Add(24 * time.Hour), Reason: "checkup", Status: "scheduled", CreatedAt: now, UpdatedAt: now},
		},
	}
}

func (f *fakeClinic) setData(d snapshot.Data) {
	f.mu.Lock()
	f.data = d
	f.mu.Unlock()
}

func (f *fakeClinic) hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoHits[path]
}

func (f *fakeClinic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/api/token/" && r.Method == http.MethodPost {
		f.logins++
		if r.FormValue("username") != "vet" || r.FormValue("password") != "secret" {
			http.Error(w, `{"detail":"bad credentials"}`, http.StatusBadRequest)
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"access": f.token})
		return
	}

	if strings.HasSuffix(r.URL.Path, infoSuffix) {
		f.infoHits[r.URL.Path]++
	}
	if !strings.HasPrefix(r.URL.Path, f.prefix+"/") {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch strings.TrimPrefix(r.URL.Path, f.prefix) {
	case "/database/sync/":
		if f.failInfo > 0 {
			f.failInfo--
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		writeTestJSON(w, http.StatusOK, RemoteInfo{
			Timestamp:     time.Now().UTC(),
			DBType:        "memory",
			SyncMethod:    "snapshot",
			SchemaVersion: snapshot.Version,
			Tables:        snapshot.Tables,
			Counts:        f.data.Counts(),
			Checksum:      f.data.Checksum(),
		})

	case "/database/download/":
		f.downloads++
		if f.truncate > 0 {
			f.truncate--
			// anuncia más bytes de los que manda y corta la conexión
			w.Header().Set("Content-Length", "5000")
			_, _ = w.Write([]byte{0x1f, 0x8b, 0x08, 0x00})
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		sum := f.data.Checksum()
		if f.tamper {
			sum = strings.Repeat("0", len(sum))
		}
		var buf bytes.Buffer
		if err := snapshot.Encode(&buf, f.data); err != nil {
			f.t.Errorf("encode: %v", err)
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set(headerChecksum, sum)
		_, _ = w.Write(buf.Bytes())

	case "/sync/offline-changes/":
		var req pushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := pushResponse{Status: "success", Timestamp: time.Now().UTC()}
		for i, c := range req.Changes {
			f.received = append(f.received, c)
			res := ChangeResult{Status: "success", ChangeID: "chg-" + string(rune('a'+i)), ID: c.ID}
			if c.Model == f.rejectModel {
				res = ChangeResult{Status: "error", Message: "model rejected"}
			}
			out.Results = append(out.Results, res)
		}
		writeTestJSON(w, http.StatusOK, out)

	case "/database/upload/":
		file, _, err := r.FormFile(uploadField)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		d, err := snapshot.Decode(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := d.Checksum(); got != r.Header.Get(headerChecksum) {
			http.Error(w, "checksum mismatch", http.StatusUnprocessableEntity)
			return
		}
		f.uploaded = &d
		f.data = d
		writeTestJSON(w, http.StatusOK, map[string]any{"status": "success", "checksum": d.Checksum()})

	default:
		http.NotFound(w, r)
	}
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(urls ...string) Config {
	cfg := DefaultConfig()
	cfg.ServerURL = urls[0]
	cfg.FallbackServerURLs = urls[1:]
	cfg.Username = "vet"
	cfg.Password = "secret"
	cfg.MaxRetries = 2
	cfg.RetryInitial = time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}
