package syncclient

import "errors"

var (
	// ErrUnauthorized: el servidor rechazó las credenciales (401/403) o no
	// hay credenciales y el acceso anónimo no está habilitado.
	ErrUnauthorized = errors.New("syncclient: unauthorized")

	// ErrNoEndpoint: el servidor responde pero ninguna ruta candidata existe.
	ErrNoEndpoint = errors.New("syncclient: no sync endpoint found")

	// ErrUnavailable: no se pudo contactar a ningún servidor/base.
	ErrUnavailable = errors.New("syncclient: source unavailable")

	ErrNotSupported    = errors.New("syncclient: operation not supported by source")
	ErrSnapshotInvalid = errors.New("syncclient: snapshot invalid")
)
