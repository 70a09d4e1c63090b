package dbsync

import "time"

// Info describe el estado sincronizable del servidor.
type Info struct {
	Timestamp     time.Time
	LastSync      *time.Time
	DBType        string
	SyncMethod    string
	SchemaVersion int
	Tables        []string
	Counts        map[string]int
	Checksum      string
}

type UploadResult struct {
	Checksum   string
	Counts     map[string]int
	BackupPath string // vacío si no hay directorio de backup
}
