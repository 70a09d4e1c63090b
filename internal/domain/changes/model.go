package changes

import (
	"encoding/json"
	"time"
)

// OfflineChange es un cambio hecho sin conexión en el cliente de escritorio.
// Se registra siempre, se aplique o no.
type OfflineChange struct {
	ID         string
	ChangeType ChangeType
	Model      Model
	TargetID   string // vacío en create
	Data       json.RawMessage

	// ClientID es la clave de idempotencia que manda el cliente. Un reenvío
	// con la misma clave devuelve el resultado registrado.
	ClientID string

	CreatedBy string
	CreatedAt time.Time

	Status    Status
	AppliedAt *time.Time
	ResultID  string // id de la entidad afectada
	Error     string
}
