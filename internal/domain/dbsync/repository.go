package dbsync

import (
	"context"

	"epetcare/internal/snapshot"
)

// Store es el almacenamiento completo visto como snapshot.
type Store interface {
	Export(ctx context.Context) (snapshot.Data, error)
	// Replace reemplaza todas las tablas de forma atómica.
	Replace(ctx context.Context, d snapshot.Data) error
	// Kind identifica el backend ("postgres", "memory").
	Kind() string
}
