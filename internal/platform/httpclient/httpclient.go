package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 1 << 20  // 1MB
	maxBody      = 64 << 20 // respuestas JSON exitosas
)

// ErrBodyTooLarge: la respuesta supera el límite de lectura.
var ErrBodyTooLarge = errors.New("httpclient: response body too large")

// TransportError es una falla de red: el request no llegó a tener respuesta
// o la respuesta se cortó a mitad del body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "httpclient: " + e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport informa si err es (o envuelve) un *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client envuelve *http.Client con helpers comunes para el cliente de sync.
type Client struct {
	HTTP    *http.Client
	BaseURL string // opcional; si se define, los helpers aceptan paths relativos

	// Headers se envían en cada request (p.ej. Authorization).
	Headers map[string]string
}

// New crea un Client con timeout razonable.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
		},
		Headers: map[string]string{},
	}
}

// NewWithBaseURL crea un Client con BaseURL + timeout.
func NewWithBaseURL(baseURL string, timeout time.Duration) (*Client, error) {
	c := New(timeout)
	if strings.TrimSpace(baseURL) == "" {
		return c, nil
	}
	_, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c.BaseURL = strings.TrimRight(baseURL, "/")
	return c, nil
}

// NewWithTransport permite inyectar un Transport (p.ej. para tests).
func NewWithTransport(timeout time.Duration, tr http.RoundTripper) *Client {
	c := New(timeout)
	if tr == nil {
		tr = http.DefaultTransport
	}
	c.HTTP.Transport = tr
	return c
}

// SetHeader fija un header por defecto. value vacío lo elimina.
func (c *Client) SetHeader(key, value string) {
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	if strings.TrimSpace(value) == "" {
		delete(c.Headers, key)
		return
	}
	c.Headers[key] = value
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// StatusCode devuelve el status de un *HTTPError envuelto, o 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// DoJSON hace un request JSON.
// - method: GET/POST/etc
// - pathOrURL: puede ser URL absoluta o path relativo si BaseURL está seteado
// - headers: headers extra (opcional)
// - in: body a enviar (opcional). Si nil => no body.
// - out: donde decodificar JSON (opcional). Si nil => ignora body.
// Retorna error si status no es 2xx.
func (c *Client) DoJSON(
	ctx context.Context,
	method string,
	pathOrURL string,
	headers map[string]string,
	in any,
	out any,
) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, pathOrURL, headers, body, contentType, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, out)
}

// DoForm envía un body application/x-www-form-urlencoded y decodifica JSON.
func (c *Client) DoForm(
	ctx context.Context,
	pathOrURL string,
	headers map[string]string,
	form url.Values,
	out any,
) error {
	resp, err := c.do(ctx, http.MethodPost, pathOrURL, headers,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, out)
}

// Download copia el body de un GET a w y devuelve los headers de la respuesta.
func (c *Client) Download(ctx context.Context, pathOrURL string, headers map[string]string, w io.Writer) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodGet, pathOrURL, headers, nil, "", "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	if _, err := io.Copy(w, bodyReader{resp.Body}); err != nil {
		if IsTransport(err) {
			return nil, err
		}
		return nil, fmt.Errorf("httpclient: write body: %w", err)
	}
	return resp.Header, nil
}

// Upload envía r como archivo multipart en el campo field y decodifica JSON.
func (c *Client) Upload(
	ctx context.Context,
	pathOrURL string,
	headers map[string]string,
	field, filename string,
	r io.Reader,
	out any,
) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("httpclient: multipart: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("httpclient: multipart copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("httpclient: multipart close: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathOrURL, headers, &buf, mw.FormDataContentType(), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, out)
}

func (c *Client) do(
	ctx context.Context,
	method, pathOrURL string,
	headers map[string]string,
	body io.Reader,
	contentType, accept string,
) (*http.Response, error) {
	if c == nil || c.HTTP == nil {
		return nil, errors.New("httpclient: nil client")
	}

	fullURL, err := c.resolveURL(pathOrURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: new request: %w", err)
	}

	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.Headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	// Extra headers (pisan los defaults)
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "do request", Err: err}
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := readAtMost(resp.Body, maxErrorBody)
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}
}

func decodeJSON(resp *http.Response, out any) error {
	if err := checkStatus(resp); err != nil {
		return err
	}

	raw, err := readAtMost(bodyReader{resp.Body}, maxBody+1)
	if err != nil {
		return err
	}
	if int64(len(raw)) > maxBody {
		return fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBody)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}

func (c *Client) resolveURL(pathOrURL string) (string, error) {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if pathOrURL == "" {
		return "", errors.New("httpclient: empty url")
	}

	// Si ya es URL absoluta, úsala tal cual.
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL, nil
	}

	// Si no es absoluta, requiere BaseURL.
	if strings.TrimSpace(c.BaseURL) == "" {
		return "", errors.New("httpclient: relative path requires BaseURL")
	}

	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return c.BaseURL + pathOrURL, nil
}

func readAtMost(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = maxErrorBody
	}
	lr := io.LimitReader(r, max)
	return io.ReadAll(lr)
}

// bodyReader marca como TransportError los cortes del body (p.ej. un
// unexpected EOF cuando el servidor cierra antes de Content-Length).
type bodyReader struct{ r io.Reader }

func (b bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		err = &TransportError{Op: "read body", Err: err}
	}
	return n, err
}
