package syncclient

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	require.Equal(t, "https://clinic.example.com", NormalizeURL(" clinic.example.com/ "))
	require.Equal(t, "http://localhost:8000", NormalizeURL("http://localhost:8000///"))
	require.Equal(t, "", NormalizeURL("   "))
}

func TestLoadConfig_FileEnvAndNormalization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epetsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: clinic.example.com/
fallback_server_urls:
  - https://clinic.example.com
  - backup.example.com/
username: vet
password: secret
interval: 90s
max_retries: 5
`), 0o600))

	t.Setenv("EPETSYNC_PASSWORD", "from-env")
	t.Setenv("EPETSYNC_CACHE_PATH", "/tmp/cache.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, SourceHTTP, cfg.Source)
	require.Equal(t, "https://clinic.example.com", cfg.ServerURL)
	require.Equal(t, []string{"https://backup.example.com"}, cfg.FallbackServerURLs)
	require.Equal(t, 90*time.Second, cfg.Interval)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, "from-env", cfg.Password)
	require.Equal(t, "/tmp/cache.db", cfg.CachePath)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)

	require.NotContains(t, cfg.String(), "from-env")
}

func TestLoadConfig_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("EPETSYNC_SERVER_URL", "http://127.0.0.1:8080")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	require.Equal(t, DefaultConfig().Interval, cfg.Interval)
}

func TestLoadConfig_SourceOverrideAppliesBeforeValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epetsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: http\nshared_file: "+filepath.Join(dir, "shared.json.gz")+"\n"), 0o600))

	// http sin server_url no valida
	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LoadConfig(path, WithSource(""))
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := LoadConfig(path, WithSource("FILE"))
	require.NoError(t, err)
	require.Equal(t, SourceFile, cfg.Source)
	require.Equal(t, DefaultConfig().Interval, cfg.Interval)
}

func TestConfig_NormalizeValidatesSource(t *testing.T) {
	cfg := DefaultConfig()
	require.ErrorIs(t, cfg.Normalize(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Source = "FILE"
	cfg.SharedFile = "/srv/share/epetcare.json.gz"
	require.NoError(t, cfg.Normalize())
	require.Equal(t, SourceFile, cfg.Source)

	cfg = DefaultConfig()
	cfg.Source = SourcePostgres
	cfg.Postgres.Host = "db-internal"
	require.ErrorIs(t, cfg.Normalize(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Source = "ftp"
	require.ErrorIs(t, cfg.Normalize(), ErrInvalidConfig)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: [not a duration"), 0o600))
	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	res, err := Probe(context.Background(), "127.0.0.1", port, time.Second)
	require.NoError(t, err)
	require.Equal(t, ln.Addr().String(), res.Address)

	require.NoError(t, ln.Close())
	_, err = Probe(context.Background(), "127.0.0.1", port, time.Second)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestProbeTargets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerURL = "https://clinic.example.com"
	cfg.FallbackServerURLs = []string{"http://10.0.0.5:8000"}

	targets, err := ProbeTargets(cfg)
	require.NoError(t, err)
	require.Equal(t, []ProbeTarget{
		{Host: "clinic.example.com", Port: 443},
		{Host: "10.0.0.5", Port: 8000},
	}, targets)

	cfg = DefaultConfig()
	cfg.Source = SourcePostgres
	cfg.Postgres.DatabaseURL = "postgres://u:p@db.example.com:6543/epetcare"
	targets, err = ProbeTargets(cfg)
	require.NoError(t, err)
	require.Equal(t, []ProbeTarget{{Host: "db.example.com", Port: 6543}}, targets)
}
