package syncclient

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"epetcare/internal/adapters/storage/postgres"
)

type SourceKind string

const (
	SourceHTTP     SourceKind = "http"
	SourcePostgres SourceKind = "postgres"
	SourceFile     SourceKind = "file"
)

// Config del cliente de sincronización (archivo YAML + overrides por env).
type Config struct {
	Source SourceKind `yaml:"source"`

	ServerURL          string   `yaml:"server_url"`
	FallbackServerURLs []string `yaml:"fallback_server_urls"`

	Token          string `yaml:"token"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`

	Postgres   postgres.Config `yaml:"postgres"`
	SharedFile string          `yaml:"shared_file"`

	CachePath string `yaml:"cache_path"`

	Interval         time.Duration `yaml:"interval"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryInitial     time.Duration `yaml:"retry_initial"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
	PushBatchSize    int           `yaml:"push_batch_size"`
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout"`
}

var ErrInvalidConfig = errors.New("syncclient: invalid config")

func DefaultConfig() Config {
	return Config{
		Source:           SourceHTTP,
		CachePath:        "epetcare-cache.db",
		Interval:         5 * time.Minute,
		RequestTimeout:   30 * time.Second,
		MaxRetries:       3,
		RetryInitial:     500 * time.Millisecond,
		WatchDebounce:    500 * time.Millisecond,
		PushBatchSize:    100,
		ReconnectTimeout: 30 * time.Second,
	}
}

// Override modifica la config cargada antes de normalizar (p.ej. flags).
type Override func(*Config)

// WithSource fuerza la fuente; vacío no cambia nada.
func WithSource(kind string) Override {
	return func(c *Config) {
		if strings.TrimSpace(kind) != "" {
			c.Source = SourceKind(strings.TrimSpace(kind))
		}
	}
}

// LoadConfig lee path (si existe), aplica env, luego los overrides, y
// normaliza. path vacío => solo defaults + env.
func LoadConfig(path string, overrides ...Override) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}

	cfg.applyEnv()
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	var src string
	setString("EPETSYNC_SOURCE", &src)
	if src != "" {
		c.Source = SourceKind(src)
	}
	setString("EPETSYNC_SERVER_URL", &c.ServerURL)
	setString("EPETSYNC_TOKEN", &c.Token)
	setString("EPETSYNC_USERNAME", &c.Username)
	setString("EPETSYNC_PASSWORD", &c.Password)
	setString("EPETSYNC_CACHE_PATH", &c.CachePath)
	setString("EPETSYNC_SHARED_FILE", &c.SharedFile)
	setString("EPETSYNC_DATABASE_URL", &c.Postgres.DatabaseURL)

	if v, ok := os.LookupEnv("EPETSYNC_FALLBACK_URLS"); ok && strings.TrimSpace(v) != "" {
		c.FallbackServerURLs = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("EPETSYNC_ALLOW_ANONYMOUS"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.AllowAnonymous = b
		}
	}
	if v, ok := os.LookupEnv("EPETSYNC_INTERVAL"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			c.Interval = d
		}
	}
}

// Normalize corrige URLs, completa defaults y valida según la fuente.
func (c *Config) Normalize() error {
	def := DefaultConfig()
	if c.Source == "" {
		c.Source = def.Source
	}
	c.Source = SourceKind(strings.ToLower(string(c.Source)))

	c.ServerURL = NormalizeURL(c.ServerURL)
	fallbacks := c.FallbackServerURLs[:0:0]
	seen := map[string]bool{c.ServerURL: true}
	for _, u := range c.FallbackServerURLs {
		u = NormalizeURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		fallbacks = append(fallbacks, u)
	}
	c.FallbackServerURLs = fallbacks

	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = def.RetryInitial
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = def.WatchDebounce
	}
	if c.PushBatchSize <= 0 {
		c.PushBatchSize = def.PushBatchSize
	}
	if c.ReconnectTimeout <= 0 {
		c.ReconnectTimeout = def.ReconnectTimeout
	}
	if strings.TrimSpace(c.CachePath) == "" {
		c.CachePath = def.CachePath
	}

	switch c.Source {
	case SourceHTTP:
		if c.ServerURL == "" {
			return fmt.Errorf("%w: server_url is required for http source", ErrInvalidConfig)
		}
	case SourcePostgres:
		if _, err := c.Postgres.Resolve(); err != nil {
			return fmt.Errorf("%w: postgres: %v", ErrInvalidConfig, err)
		}
	case SourceFile:
		if strings.TrimSpace(c.SharedFile) == "" {
			return fmt.Errorf("%w: shared_file is required for file source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	return nil
}

// Servers devuelve server_url seguido de los fallbacks.
func (c Config) Servers() []string {
	out := make([]string, 0, 1+len(c.FallbackServerURLs))
	if c.ServerURL != "" {
		out = append(out, c.ServerURL)
	}
	return append(out, c.FallbackServerURLs...)
}

// NormalizeURL quita espacios y la barra final, y agrega https:// cuando
// falta el esquema.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

// String enmascara credenciales.
func (c Config) String() string {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	return fmt.Sprintf("Config{Source: %s, Server: %q, Fallbacks: %d, User: %q, Password: %s, Token: %s, Anonymous: %t, Cache: %q, Interval: %s}",
		c.Source, c.ServerURL, len(c.FallbackServerURLs), c.Username, mask(c.Password), mask(c.Token),
		c.AllowAnonymous, c.CachePath, c.Interval)
}
