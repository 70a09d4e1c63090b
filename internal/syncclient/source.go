package syncclient

import (
	"context"
	"encoding/json"
	"fmt"

	"epetcare/internal/snapshot"
)

// Source es el origen remoto de verdad: API HTTP, Postgres directo o un
// archivo de snapshot compartido.
type Source interface {
	// Name identifica el origen activo (URL, host o path) para logs/status.
	Name() string
	Info(ctx context.Context) (RemoteInfo, error)
	// Fetch devuelve un snapshot validado y su checksum.
	Fetch(ctx context.Context) (snapshot.Data, string, error)
	Push(ctx context.Context, changes []Change) ([]ChangeResult, error)
	// Upload reemplaza el contenido remoto; devuelve el checksum aceptado.
	Upload(ctx context.Context, d snapshot.Data) (string, error)
	Close() error
}

// Change es un cambio offline tal como viaja a /sync/offline-changes/.
// ClientID es la clave de idempotencia: el servidor aplica una sola vez cada
// clave y ante un reenvío devuelve el resultado registrado.
type Change struct {
	Type     string          `json:"type"`
	Model    string          `json:"model"`
	ID       string          `json:"id,omitempty"`
	Data     json.RawMessage `json:"data"`
	ClientID string          `json:"client_id,omitempty"`
}

// ClientKey arma la clave de idempotencia de un cambio de la cola local.
func ClientKey(installID string, queueID int64) string {
	return fmt.Sprintf("epetsync:%s:%d", installID, queueID)
}

// idempotent informa si todos los cambios llevan clave y por lo tanto se
// pueden reenviar sin riesgo de aplicarlos dos veces.
func idempotent(changes []Change) bool {
	for _, c := range changes {
		if c.ClientID == "" {
			return false
		}
	}
	return true
}

type ChangeResult struct {
	Status   string `json:"status"`
	ChangeID string `json:"change_id"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (r ChangeResult) OK() bool { return r.Status == "success" }
