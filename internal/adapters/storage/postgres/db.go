package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"epetcare/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConfigMissing  = errors.New("postgres config incomplete")
	ErrInternalHost   = errors.New("postgres host lacks a domain component")
	defaultConnectTTL = 10 * time.Second
)

// Config acepta una URL completa o campos sueltos. La URL completa los
// campos que estén vacíos.
type Config struct {
	DatabaseURL    string        `yaml:"database_url"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Database       string        `yaml:"database"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"sslmode"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Resolve normaliza la config y valida que se pueda armar un DSN.
func (c Config) Resolve() (Config, error) {
	// host con URL pegada por error
	if strings.HasPrefix(c.Host, "postgres://") || strings.HasPrefix(c.Host, "postgresql://") {
		if c.DatabaseURL == "" {
			c.DatabaseURL = c.Host
		}
		c.Host = ""
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return Config{}, fmt.Errorf("database_url: %w", err)
		}
		if c.User == "" && u.User != nil {
			c.User = u.User.Username()
		}
		if pw, ok := u.User.Password(); ok && c.Password == "" {
			c.Password = pw
		}
		if c.Host == "" {
			c.Host = u.Hostname()
		}
		if c.Port == 0 && u.Port() != "" {
			c.Port, _ = strconv.Atoi(u.Port())
		}
		if c.Database == "" {
			c.Database = strings.TrimPrefix(u.Path, "/")
		}
		if c.SSLMode == "" {
			c.SSLMode = u.Query().Get("sslmode")
		}
	}

	if c.Port == 0 {
		c.Port = 5432
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTTL
	}

	var missing []string
	for name, v := range map[string]string{"host": c.Host, "database": c.Database, "user": c.User} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: missing %s", ErrConfigMissing, strings.Join(missing, ", "))
	}

	// Hostnames internos de proveedores (sin punto) no resuelven desde afuera.
	if !strings.Contains(c.Host, ".") && c.Host != "localhost" && net.ParseIP(c.Host) == nil {
		return Config{}, fmt.Errorf("%w: %q (use the external hostname)", ErrInternalHost, c.Host)
	}
	return c, nil
}

// DSN arma la URL de conexión. Llamar sobre una config ya resuelta.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout/time.Second)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted es el DSN sin password, para logs.
func (c Config) Redacted() string {
	return fmt.Sprintf("host=%s port=%d db=%s user=%s sslmode=%s", c.Host, c.Port, c.Database, c.User, c.SSLMode)
}

// Open abre un pool a Postgres usando pgx (database/sql) con TCP keepalive,
// para que conexiones ociosas no queden cortadas por el servidor o un NAT.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTTL
	}
	dialer := &net.Dialer{
		Timeout: cfg.ConnectTimeout,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     60 * time.Second,
			Interval: 30 * time.Second,
			Count:    5,
		},
	}
	cfg.DialFunc = dialer.DialContext

	db := stdlib.OpenDB(*cfg)

	// defaults razonables (ajustable luego)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// OpenWithRetry reintenta Open con backoff exponencial hasta maxElapsed
// o hasta que ctx se cancele.
func OpenWithRetry(ctx context.Context, dsn string, maxElapsed time.Duration, log logger.Logger) (*sql.DB, error) {
	if log == nil {
		log = logger.Nop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = maxElapsed

	var db *sql.DB
	op := func() error {
		var err error
		db, err = Open(dsn)
		if err != nil {
			var pe *pgconn.ParseConfigError
			if errors.As(err, &pe) {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("postgres not ready, retrying", map[string]any{"error": err, "wait": wait.String()})
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return db, nil
}
