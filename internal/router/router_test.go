package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"epetcare/internal/adapters/auth/jwt"
	"epetcare/internal/router"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	jwtSvc := jwt.NewService("test-secret", time.Hour)
	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: jwtSvc,
		TokenIssuer:  jwtSvc,
		DevAuth:      true,
		BackupDir:    t.TempDir(),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_VetPortalFlow(t *testing.T) {
	ts := newServer(t)

	// 1) Registro + login
	register(t, ts.URL, "dr-lopez", "vet")
	token := login(t, ts.URL, "/api/token/", "access", "dr-lopez")
	h := bearer(token)

	// 2) Perfil propio
	{
		st, body := doReq(t, ts.URL, "GET", "/api/accounts/me", h, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 me, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), `"username":"dr-lopez"`) {
			t.Fatalf("unexpected me body=%s", string(body))
		}
	}

	// 3) Dueño, mascota y turno
	ownerID := createID(t, ts.URL, "/api/owners/", h, map[string]any{
		"full_name": "Ana Pérez",
		"email":     "ana@example.com",
	})
	petID := createID(t, ts.URL, "/api/pets/", h, map[string]any{
		"owner_id": ownerID,
		"name":     "Milo",
		"species":  "dog",
		"sex":      "male",
	})
	apptID := createID(t, ts.URL, "/api/appointments/", h, map[string]any{
		"pet_id":    petID,
		"date_time": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"reason":    "vaccine",
	})

	// 4) Búsqueda de mascotas por nombre
	{
		st, body := doReq(t, ts.URL, "GET", "/api/pets/?q=mil", h, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list pets, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), petID) {
			t.Fatalf("expected pet %s in list, body=%s", petID, string(body))
		}
	}

	// 5) El turno genera una notificación para el vet
	{
		st, body := doReq(t, ts.URL, "GET", "/api/notifications", h, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 notifications, got %d body=%s", st, string(body))
		}
		var items []map[string]any
		_ = json.Unmarshal(body, &items)
		if len(items) != 1 {
			t.Fatalf("expected 1 notification, got %d body=%s", len(items), string(body))
		}

		st, _ = doReq(t, ts.URL, "POST", "/api/notifications/read-all", h, nil)
		if st != http.StatusOK && st != http.StatusNoContent {
			t.Fatalf("expected read-all to succeed, got %d", st)
		}
		_, body = doReq(t, ts.URL, "GET", "/api/notifications?unread=true", h, nil)
		_ = json.Unmarshal(body, &items)
		if len(items) != 0 {
			t.Fatalf("expected no unread notifications, body=%s", string(body))
		}
	}

	// 6) Cancelar turno
	{
		st, body := doReq(t, ts.URL, "PATCH", "/api/appointments/"+apptID, h, map[string]any{
			"status": "cancelled",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 patch appointment, got %d body=%s", st, string(body))
		}
	}

	// 7) Pet inexistente => 404
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/pets/nope", h, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 unknown pet, got %d", st)
		}
	}
}

func TestHTTP_RoleEnforcement(t *testing.T) {
	ts := newServer(t)

	// sin credenciales
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/owners/", nil, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 without token, got %d", st)
		}
	}

	// token inválido
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/owners/", bearer("garbage"), nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 bad token, got %d", st)
		}
	}

	// dueño autenticado no entra al portal
	register(t, ts.URL, "ana", "owner")
	token := login(t, ts.URL, "/api-token-auth/", "token", "ana")
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/owners/", bearer(token), nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 owner on vet route, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/api/accounts/me", bearer(token), nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 me for owner, got %d", st)
		}
	}

	// credenciales malas
	{
		form := url.Values{"username": {"ana"}, "password": {"wrong-password"}}
		res, err := http.PostForm(ts.URL+"/api-token-auth/", form)
		if err != nil {
			t.Fatalf("post form: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 bad credentials, got %d", res.StatusCode)
		}
	}

	// username repetido
	{
		st, _ := doReq(t, ts.URL, "POST", "/api/accounts/register", nil, map[string]any{
			"username": "ana",
			"password": "password123",
			"role":     "owner",
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 duplicated username, got %d", st)
		}
	}
}

func TestHTTP_VetPortalAliasAndDevAuth(t *testing.T) {
	ts := newServer(t)

	h := map[string]string{"X-Debug-User-ID": "vet-1"}
	ownerID := createID(t, ts.URL, "/vet_portal/api/owners/", h, map[string]any{
		"full_name": "Juan Díaz",
		"email":     "juan@example.com",
	})

	// mismo backend por /api
	st, body := doReq(t, ts.URL, "GET", "/api/owners/"+ownerID, h, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 get owner via /api, got %d body=%s", st, string(body))
	}

	// token por el alias del portal
	register(t, ts.URL, "dr-ruiz", "vet")
	login(t, ts.URL, "/vet_portal/api-token-auth/", "token", "dr-ruiz")

	// rol de debug owner => 403
	st, _ = doReq(t, ts.URL, "GET", "/vet_portal/api/owners/", map[string]string{
		"X-Debug-User-ID": "owner-1",
		"X-Debug-Role":    "owner",
	}, nil)
	if st != http.StatusForbidden {
		t.Fatalf("expected 403 debug owner, got %d", st)
	}
}

func TestHTTP_SnapshotDownloadUpload(t *testing.T) {
	ts := newServer(t)
	h := map[string]string{"X-Debug-User-ID": "vet-1"}

	ownerID := createID(t, ts.URL, "/api/owners/", h, map[string]any{"full_name": "Ana", "email": "ana@example.com"})
	createID(t, ts.URL, "/api/pets/", h, map[string]any{"owner_id": ownerID, "name": "Milo", "species": "dog", "sex": "male"})

	// info
	var info struct {
		Checksum string         `json:"checksum"`
		Counts   map[string]int `json:"counts"`
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/api/database/sync/", h, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 sync info, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &info)
		if info.Checksum == "" || info.Counts["pets"] != 1 || info.Counts["owners"] != 1 {
			t.Fatalf("unexpected sync info body=%s", string(body))
		}
	}

	// download
	res := rawReq(t, ts.URL, "GET", "/api/database/download/", h, nil)
	snap, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 download, got %d", res.StatusCode)
	}
	sum := res.Header.Get("X-Snapshot-Checksum")
	if sum != info.Checksum {
		t.Fatalf("download checksum %q != info checksum %q", sum, info.Checksum)
	}

	// upload con checksum equivocado => 422
	{
		hh := map[string]string{"X-Debug-User-ID": "vet-1", "X-Snapshot-Checksum": "deadbeef", "Content-Type": "application/gzip"}
		res := rawReq(t, ts.URL, "POST", "/api/database/upload/", hh, bytes.NewReader(snap))
		res.Body.Close()
		if res.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 checksum mismatch, got %d", res.StatusCode)
		}
	}

	// upload basura => 400
	{
		hh := map[string]string{"X-Debug-User-ID": "vet-1", "Content-Type": "application/gzip"}
		res := rawReq(t, ts.URL, "POST", "/api/database/upload/", hh, strings.NewReader("not a snapshot"))
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 invalid snapshot, got %d", res.StatusCode)
		}
	}

	// cambia la base y se restaura con el snapshot previo
	createID(t, ts.URL, "/api/owners/", h, map[string]any{"full_name": "Otro", "email": "otro@example.com"})
	{
		hh := map[string]string{"X-Debug-User-ID": "vet-1", "X-Snapshot-Checksum": sum, "Content-Type": "application/gzip"}
		res := rawReq(t, ts.URL, "POST", "/api/database/upload/", hh, bytes.NewReader(snap))
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 upload, got %d body=%s", res.StatusCode, string(body))
		}
		var out struct {
			Status     string `json:"status"`
			Checksum   string `json:"checksum"`
			BackupPath string `json:"backup_path"`
		}
		_ = json.Unmarshal(body, &out)
		if out.Checksum != sum || out.BackupPath == "" {
			t.Fatalf("unexpected upload response body=%s", string(body))
		}
	}

	st, body := doReq(t, ts.URL, "GET", "/api/database/sync/", h, nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"checksum":"`+sum+`"`) {
		t.Fatalf("expected restored checksum, got %d body=%s", st, string(body))
	}
}

func TestHTTP_OfflineChanges(t *testing.T) {
	ts := newServer(t)
	h := map[string]string{"X-Debug-User-ID": "vet-1"}

	ownerID := createID(t, ts.URL, "/api/owners/", h, map[string]any{"full_name": "Ana", "email": "ana@example.com"})
	petID := createID(t, ts.URL, "/api/pets/", h, map[string]any{"owner_id": ownerID, "name": "Milo", "species": "dog", "sex": "male"})

	st, body := doReq(t, ts.URL, "POST", "/api/sync/offline-changes/", h, map[string]any{
		"changes": []map[string]any{
			{
				"type":  "create",
				"model": "appointment",
				"data": map[string]any{
					"pet_id":    petID,
					"date_time": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
					"reason":    "control",
				},
			},
			{"type": "delete", "model": "prescription", "id": "missing"},
			{"type": "create", "model": "invoice", "data": map[string]any{}},
		},
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 offline changes, got %d body=%s", st, string(body))
	}

	var resp struct {
		Status  string `json:"status"`
		Results []struct {
			Status string `json:"status"`
			ID     string `json:"id"`
		} `json:"results"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.Status != "success" || len(resp.Results) != 3 {
		t.Fatalf("unexpected offline changes body=%s", string(body))
	}
	if resp.Results[0].Status != "success" || resp.Results[0].ID == "" {
		t.Fatalf("expected appointment change applied, body=%s", string(body))
	}
	if resp.Results[1].Status != "error" || resp.Results[2].Status != "error" {
		t.Fatalf("expected failing changes reported per item, body=%s", string(body))
	}

	// el turno creado offline existe
	st, _ = doReq(t, ts.URL, "GET", "/api/appointments/"+resp.Results[0].ID, h, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 get offline appointment, got %d", st)
	}

	// journal
	st, body = doReq(t, ts.URL, "GET", "/api/sync/offline-changes/", h, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 list changes, got %d", st)
	}
	var items []map[string]any
	_ = json.Unmarshal(body, &items)
	if len(items) != 3 {
		t.Fatalf("expected 3 journaled changes, got %d body=%s", len(items), string(body))
	}
}

func TestHTTP_HealthAndSwagger(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "GET", "/health", nil, nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected health ok, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/swagger/doc.json", nil, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 swagger doc, got %d", st)
	}
	if !strings.Contains(string(body), "/database/sync/") {
		t.Fatalf("swagger doc missing sync paths")
	}
}

// ----------------- helpers -----------------

func register(t *testing.T, baseURL, username, role string) {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/api/accounts/register", nil, map[string]any{
		"username":  username,
		"password":  "password123",
		"role":      role,
		"full_name": username,
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 register, got %d body=%s", st, string(body))
	}
}

func login(t *testing.T, baseURL, path, field, username string) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", path, nil, map[string]any{
		"username": username,
		"password": "password123",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 login at %s, got %d body=%s", path, st, string(body))
	}

	var resp map[string]string
	_ = json.Unmarshal(body, &resp)
	if resp[field] == "" {
		t.Fatalf("login: missing %q body=%s", field, string(body))
	}
	return resp[field]
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func createID(t *testing.T, baseURL, path string, headers map[string]string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", path, headers, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 POST %s, got %d body=%s", path, st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("POST %s: missing id body=%s", path, string(body))
	}
	return resp.ID
}

func doReq(t *testing.T, baseURL, method, path string, headers map[string]string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	h := map[string]string{}
	for k, v := range headers {
		h[k] = v
	}
	if body != nil {
		h["Content-Type"] = "application/json"
	}

	res := rawReq(t, baseURL, method, path, h, rdr)
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func rawReq(t *testing.T, baseURL, method, path string, headers map[string]string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return res
}
