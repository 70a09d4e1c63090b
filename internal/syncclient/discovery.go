package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"epetcare/internal/platform/httpclient"
)

const infoSuffix = "/database/sync/"

// InfoPaths son las rutas de info probadas en orden; el prefijo de la que
// responde 200 se usa para el resto de los endpoints.
var InfoPaths = []string{
	"/api/database/sync/",
	"/vet_portal/api/database/sync/",
	"/api/v1/database/sync/",
	"/database/sync/",
}

// RemoteInfo es la respuesta de GET <prefix>/database/sync/.
type RemoteInfo struct {
	Timestamp     time.Time      `json:"timestamp"`
	LastSync      *time.Time     `json:"last_sync"`
	DBType        string         `json:"db_type"`
	SyncMethod    string         `json:"sync_method"`
	SchemaVersion int            `json:"schema_version"`
	Tables        []string       `json:"tables"`
	Counts        map[string]int `json:"counts"`
	Checksum      string         `json:"checksum"`
}

// Discoverer encuentra y cachea el prefijo de API de un servidor.
type Discoverer struct {
	Paths []string

	mu     sync.Mutex
	prefix string
	found  bool
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{Paths: InfoPaths}
}

// Prefix devuelve el prefijo cacheado ("/api", "/vet_portal/api", "").
func (d *Discoverer) Prefix() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prefix, d.found
}

func (d *Discoverer) Reset() {
	d.mu.Lock()
	d.prefix, d.found = "", false
	d.mu.Unlock()
}

// Info consulta el endpoint de info. Si hay un prefijo cacheado lo usa; si
// ese devuelve 404 vuelve a descubrir.
func (d *Discoverer) Info(ctx context.Context, c *httpclient.Client, headers map[string]string) (RemoteInfo, error) {
	if prefix, ok := d.Prefix(); ok {
		var info RemoteInfo
		err := c.DoJSON(ctx, http.MethodGet, prefix+infoSuffix, headers, nil, &info)
		if err == nil {
			return info, nil
		}
		if httpclient.StatusCode(err) != http.StatusNotFound {
			return RemoteInfo{}, classify(err)
		}
		d.Reset()
	}
	return d.discover(ctx, c, headers)
}

func (d *Discoverer) discover(ctx context.Context, c *httpclient.Client, headers map[string]string) (RemoteInfo, error) {
	paths := d.Paths
	if len(paths) == 0 {
		paths = InfoPaths
	}

	// un 5xx o un error de red en alguna ruta hace el fallo reintentable
	var transient bool
	var lastErr error
	for _, p := range paths {
		var info RemoteInfo
		err := c.DoJSON(ctx, http.MethodGet, p, headers, nil, &info)
		if err == nil {
			d.mu.Lock()
			d.prefix, d.found = strings.TrimSuffix(p, infoSuffix), true
			d.mu.Unlock()
			return info, nil
		}
		if ctx.Err() != nil {
			return RemoteInfo{}, ctx.Err()
		}
		switch code := httpclient.StatusCode(err); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return RemoteInfo{}, fmt.Errorf("%w: %s: %v", ErrUnauthorized, p, err)
		case code >= 500 || code == http.StatusTooManyRequests || isTransportError(err):
			transient = true
		}
		lastErr = err
	}
	if transient {
		return RemoteInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return RemoteInfo{}, fmt.Errorf("%w: tried %s: %v", ErrNoEndpoint, strings.Join(paths, ", "), lastErr)
}

// classify traduce errores HTTP a la taxonomía del paquete.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch code := httpclient.StatusCode(err); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNoEndpoint, err)
	case code >= 500 || code == http.StatusTooManyRequests || isTransportError(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
