// Package apiclient is the typed HTTP client for the MCP control API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultTimeout is the default timeout for API requests.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Client wraps HTTP calls to the control API. Each call is attempted once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://127.0.0.1:5000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and returns the body of a 2xx response. Every failure
// is normalized into one of the package's error types.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "method", method, "path", path, "request_id", reqID, "err", err)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("request done",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, data)
	}
	return data, nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := extractMessage(body)
	if status == http.StatusNotFound {
		if msg == "" {
			msg = "not found"
		}
		return &NotFoundError{Op: op, Message: msg}
	}
	if msg == "" {
		return &TransportError{Op: op, StatusCode: status}
	}
	return &RemoteError{Op: op, StatusCode: status, Message: msg}
}

// extractMessage pulls the "error" or "message" string out of a JSON body.
func extractMessage(body []byte) string {
	var envelope struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if s, ok := envelope.Error.(string); ok && s != "" {
		return s
	}
	return envelope.Message
}

// decodeObject parses body as a JSON object keyed by field name.
func decodeObject(op string, body []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &ProtocolError{Op: op, Message: "body is not a JSON object", Err: err}
	}
	if obj == nil {
		return nil, &ProtocolError{Op: op, Message: "body is null"}
	}
	return obj, nil
}

// field decodes obj[name] into out. A missing or mistyped field is a
// ProtocolError.
func field(op string, obj map[string]json.RawMessage, name string, out any) error {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		return &ProtocolError{Op: op, Message: fmt.Sprintf("missing %q field", name)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Op: op, Message: fmt.Sprintf("field %q has the wrong type", name), Err: err}
	}
	return nil
}
