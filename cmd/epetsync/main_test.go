package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"epetcare/internal/snapshot"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "epetsync.yaml")
	cfg := "source: file\n" +
		"shared_file: " + filepath.Join(dir, "shared", "epetcare.json.gz") + "\n" +
		"cache_path: " + filepath.Join(dir, "cache.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func writeSnapshot(t *testing.T, path string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	d := snapshot.Data{
		Version: snapshot.Version,
		Owners:  []snapshot.Owner{{ID: "o1", FullName: "Marta Gómez", CreatedAt: now}},
		Pets: []snapshot.Pet{
			{ID: "p1", OwnerID: "o1", Name: "Milo", Species: "dog", Sex: "male", CreatedAt: now, UpdatedAt: now},
			{ID: "p2", OwnerID: "o1", Name: "Luna", Species: "cat", Sex: "female", CreatedAt: now, UpdatedAt: now},
		},
		Appointments: []snapshot.Appointment{
			{ID: "a1", PetID: "p1", DateTime: now.Add(72 * time.Hour), Reason: "vacuna", Status: "scheduled", CreatedAt: now, UpdatedAt: now},
		},
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, snapshot.Encode(f, d))
	require.NoError(t, f.Close())
}

func TestCLI_FileSourceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shared"), 0o755))

	local := filepath.Join(dir, "local.json.gz")
	writeSnapshot(t, local)

	out, err := run(t, "upload", local, "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "uploaded")

	out, err = run(t, "sync", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "imported snapshot")
	require.Contains(t, out, "pets: 2")

	out, err = run(t, "sync", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "already up to date")

	out, err = run(t, "pets", "mil", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "Milo")
	require.NotContains(t, out, "Luna")

	out, err = run(t, "agenda", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "vacuna")

	out, err = run(t, "status", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "up to date")

	back := filepath.Join(dir, "back.json.gz")
	out, err = run(t, "download", back, "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "wrote "+back)
	_, err = os.Stat(back)
	require.NoError(t, err)
}

func TestCLI_QueueAddAndList(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, err := run(t, "queue", "add", "--type", "create", "--model", "appointment",
		"--data", `{"pet_id":"p1","reason":"control"}`, "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "queued change 1")

	_, err = run(t, "queue", "add", "--type", "delete", "--model", "prescription", "--id", "", "--data", "{}", "--config", cfg)
	require.Error(t, err)

	_, err = run(t, "queue", "add", "--type", "create", "--model", "appointment", "--data", "{not json", "--config", cfg)
	require.Error(t, err)

	out, err = run(t, "queue", "list", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "appointment")
	require.Contains(t, out, "create")
}

func TestCLI_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epetsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: ftp\n"), 0o600))

	_, err := run(t, "sync", "--config", path)
	require.Error(t, err)
}

func TestCLI_DownloadReplacesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shared"), 0o755))
	writeSnapshot(t, filepath.Join(dir, "shared", "epetcare.json.gz"))

	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	target := filepath.Join(outDir, "snapshot.json.gz")
	require.NoError(t, os.WriteFile(target, []byte("old content"), 0o600))

	out, err := run(t, "download", target, "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "wrote "+target)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	d, err := snapshot.Decode(f)
	require.NoError(t, err)
	require.Len(t, d.Pets, 2)

	// sin temporales sueltos
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// directorio inexistente: falla sin crear nada
	_, err = run(t, "download", filepath.Join(dir, "missing", "x.json.gz"), "--config", cfg)
	require.Error(t, err)
}

func TestCLI_SourceFlagOverridesConfigBeforeValidation(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared", "epetcare.json.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(shared), 0o755))
	writeSnapshot(t, shared)

	// http sin server_url: solo vale con --source file
	path := filepath.Join(dir, "epetsync.yaml")
	cfg := "source: http\n" +
		"shared_file: " + shared + "\n" +
		"cache_path: " + filepath.Join(dir, "cache.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	_, err := run(t, "sync", "--config", path)
	require.Error(t, err)

	t.Cleanup(func() { sourceFlag = "" })
	out, err := run(t, "sync", "--config", path, "--source", "file")
	require.NoError(t, err)
	require.Contains(t, out, "imported snapshot")
}
