// Package transport is the HTTP collaborator used by the session store and the
// contest client. It speaks the {success, data, message} JSON envelope and
// normalizes every failure into errs.RemoteError or errs.TransportError.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/errs"
)

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// TokenSource yields the bearer token attached to requests ("" for none).
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource. It lets the transport and the
// session store be built in either order.
type TokenFunc func() string

// Token returns f().
func (f TokenFunc) Token() string { return f() }

// Envelope is the collaborator's response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client issues fire-once requests against a base URL. It never retries.
type Client struct {
	base           *url.URL
	hc             *http.Client
	tokens         TokenSource
	log            *zap.Logger
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithTokenSource attaches "Authorization: Bearer <token>" when a token is present.
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithUnauthorizedHook is called when a request that carried a token gets 401.
func WithUnauthorizedHook(fn func()) Option { return func(c *Client) { c.onUnauthorized = fn } }

// New parses baseURL and builds a Client.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		hc:   &http.Client{Timeout: 30 * time.Second},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Get issues GET path?query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "")
}

// PostJSON issues POST path with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, in any) (*Envelope, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(b), "application/json")
}

// PostMultipart issues POST path with a multipart/form-data body.
func (c *Client) PostMultipart(ctx context.Context, path string, f *Form) (*Envelope, error) {
	body, ctype, err := f.encode()
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, ctype)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, ctype string) (*Envelope, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errs.Transport("", err)
	}
	req.Header.Set("Accept", "application/json")
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	bearer := ""
	if c.tokens != nil {
		bearer = c.tokens.Token()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("http",
			zap.String("method", method),
			zap.String("path", u.Path),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return nil, errs.Transport("", err)
	}
	defer resp.Body.Close()

	// metadata only, never payloads
	c.log.Debug("http",
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.Transport("", fmt.Errorf("read body: %w", err))
	}

	var env Envelope
	decodeErr := decode(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized && bearer != "" && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.RemoteError{Status: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, errs.Transport("", decodeErr)
	}
	if !env.Success {
		return nil, &errs.RemoteError{Status: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func decode(raw []byte, env *Envelope) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
