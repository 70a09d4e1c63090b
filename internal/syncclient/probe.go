package syncclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

type ProbeResult struct {
	Address string        `json:"address"`
	Latency time.Duration `json:"latency"`
}

// Probe verifica que host:port acepte conexiones TCP.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) (ProbeResult, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ProbeResult{Address: addr}, fmt.Errorf("%w: %s: %v", ErrUnavailable, addr, err)
	}
	_ = conn.Close()
	return ProbeResult{Address: addr, Latency: time.Since(start)}, nil
}

// ProbeTargets arma la lista host:port a probar según la fuente configurada.
func ProbeTargets(cfg Config) ([]ProbeTarget, error) {
	var out []ProbeTarget
	switch cfg.Source {
	case SourcePostgres:
		pg, err := cfg.Postgres.Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, ProbeTarget{Host: pg.Host, Port: pg.Port})
	case SourceHTTP:
		for _, raw := range cfg.Servers() {
			u, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, raw, err)
			}
			port := 443
			if u.Scheme == "http" {
				port = 80
			}
			if p := u.Port(); p != "" {
				port, _ = strconv.Atoi(p)
			}
			out = append(out, ProbeTarget{Host: u.Hostname(), Port: port})
		}
	}
	return out, nil
}

type ProbeTarget struct {
	Host string
	Port int
}
