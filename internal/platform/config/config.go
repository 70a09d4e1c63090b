package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config del servidor API. Se carga desde env vars.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Sync     SyncConfig
}

type HTTPConfig struct {
	Addr         string // ":8080"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	// DSN de Postgres. Vacío => repos in-memory (modo dev).
	DSN string

	// Reintentos al abrir la conexión inicial.
	ConnectRetries time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// DevAuth habilita X-Debug-User-ID / X-Debug-Role. Nunca en prod.
	DevAuth bool
}

type SyncConfig struct {
	// Directorio donde se guarda un backup antes de aplicar un upload.
	BackupDir string
}

var ErrMissingSecret = errors.New("JWT_SECRET is required unless DEV_AUTH=true")

// Load lee la configuración desde el entorno.
func Load() (*Config, error) {
	addr := ":8080"
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		addr = ":" + v
	}

	dsn := getEnv("DB_DSN", "")
	if dsn == "" {
		dsn = getEnv("DATABASE_URL", "")
	}

	ttl, err := getEnvDuration("TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	retries, err := getEnvDuration("DB_CONNECT_RETRY", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:         addr,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second, // downloads de snapshot
		},
		Database: DatabaseConfig{
			DSN:            dsn,
			ConnectRetries: retries,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  ttl,
			DevAuth:   getEnvBool("DEV_AUTH", false),
		},
		Sync: SyncConfig{
			BackupDir: getEnv("SNAPSHOT_BACKUP_DIR", ""),
		},
	}

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.DevAuth {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

// String enmascara valores sensibles.
func (c *Config) String() string {
	db := "memory"
	if c.Database.DSN != "" {
		db = "postgres"
	}
	return fmt.Sprintf("Config{HTTP: %s, DB: %s, Auth: *** (masked) ***, DevAuth: %t, BackupDir: %q}",
		c.HTTP.Addr, db, c.Auth.DevAuth, c.Sync.BackupDir)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
