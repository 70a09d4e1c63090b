package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"epetcare/internal/platform/httpclient"
)

// TokenPaths son las rutas de login probadas en orden.
var TokenPaths = []string{
	"/api-token-auth/",
	"/api/token/",
	"/vet_portal/api-token-auth/",
}

// Authenticator obtiene y cachea el header Authorization para un servidor.
type Authenticator struct {
	Token          string
	Username       string
	Password       string
	AllowAnonymous bool
	Paths          []string

	mu     sync.Mutex
	cached string
}

func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{
		Token:          strings.TrimSpace(cfg.Token),
		Username:       strings.TrimSpace(cfg.Username),
		Password:       cfg.Password,
		AllowAnonymous: cfg.AllowAnonymous,
		Paths:          TokenPaths,
	}
}

type tokenResponse struct {
	Token  string `json:"token"`
	Access string `json:"access"`
}

// Headers devuelve los headers de autenticación. Sin credenciales y sin
// allow_anonymous devuelve ErrUnauthorized.
func (a *Authenticator) Headers(ctx context.Context, c *httpclient.Client) (map[string]string, error) {
	if a.Token != "" {
		return bearer(a.Token), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != "" {
		return bearer(a.cached), nil
	}
	if a.Username == "" || a.Password == "" {
		if a.AllowAnonymous {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: no credentials configured and anonymous access disabled", ErrUnauthorized)
	}

	token, err := a.login(ctx, c)
	if err != nil {
		return nil, err
	}
	a.cached = token
	return bearer(token), nil
}

// hasSession indica si hay un token obtenido por login que podría renovarse.
func (a *Authenticator) hasSession() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Token == "" && a.cached != ""
}

// Invalidate descarta el token cacheado (p.ej. tras un 401).
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.cached = ""
	a.mu.Unlock()
}

func (a *Authenticator) login(ctx context.Context, c *httpclient.Client) (string, error) {
	form := url.Values{}
	form.Set("username", a.Username)
	form.Set("password", a.Password)

	paths := a.Paths
	if len(paths) == 0 {
		paths = TokenPaths
	}

	var (
		rejected    bool
		unreachable = true
		lastErr     error
	)
	for _, p := range paths {
		var out tokenResponse
		err := c.DoForm(ctx, p, nil, form, &out)
		if err == nil {
			if tok := firstNonEmpty(out.Token, out.Access); tok != "" {
				return tok, nil
			}
			unreachable = false
			lastErr = fmt.Errorf("%s: response without token", p)
			continue
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isTransportError(err) {
			unreachable = false
		}
		switch httpclient.StatusCode(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			rejected = true
		}
		lastErr = err
	}

	switch {
	case rejected:
		return "", fmt.Errorf("%w: credentials rejected: %v", ErrUnauthorized, lastErr)
	case unreachable:
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	default:
		return "", fmt.Errorf("%w: no token endpoint answered: %v", ErrNoEndpoint, lastErr)
	}
}

// isTransportError: el request no llegó a tener respuesta HTTP completa.
func isTransportError(err error) bool {
	var ue *url.Error
	return httpclient.IsTransport(err) || errors.As(err, &ue)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
