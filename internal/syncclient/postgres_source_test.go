package syncclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"epetcare/internal/adapters/storage/postgres"
)

// closedPort devuelve un puerto local en el que nadie escucha.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestPostgresSource_UnreachableIsUnavailableAndRedials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourcePostgres
	cfg.Postgres = postgres.Config{
		Host:           "127.0.0.1",
		Port:           closedPort(t),
		Database:       "clinic",
		User:           "vet",
		Password:       "secret",
		SSLMode:        "disable",
		ConnectTimeout: time.Second,
	}
	cfg.ReconnectTimeout = 200 * time.Millisecond

	s, err := NewPostgresSource(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err = s.Fetch(ctx)
	require.ErrorIs(t, err, ErrUnavailable)

	s.mu.Lock()
	require.Nil(t, s.db, "a failed dial must not keep a connection")
	s.mu.Unlock()

	// la siguiente operación vuelve a intentar la conexión
	_, err = s.Info(ctx)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Push(ctx, []Change{{Type: "create", Model: "appointment"}})
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestPostgresSource_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourcePostgres
	cfg.Postgres = postgres.Config{Host: "db-internal", Database: "clinic", User: "vet"}

	_, err := NewPostgresSource(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
