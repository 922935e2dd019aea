// Package client is the Go SDK for the portfolio API.
//
// A Client injects the stored bearer token into every request, turns error
// responses into the typed errors in errors.go, and reports each error once
// to an optional Notifier. A 401 on a request that carried a token also runs
// the unauthorized hook, which the session service uses to force a logout.
// The client never retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
)

const DefaultTimeout = 30 * time.Second

// Notifier receives every error the client returns, keyed by class.
type Notifier func(class Class, err error)

type Client struct {
	baseURL string
	http    *http.Client
	store   tokenstore.Store
	log     *slog.Logger

	mu             sync.RWMutex
	notifier       Notifier
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the blanket request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger enables debug tracing of requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the API at baseURL, for example
// "https://example.com/api". store holds the bearer token.
func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Logger returns the logger set by WithLogger, or one that discards.
func (c *Client) Logger() *slog.Logger {
	if c.log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.log
}

type anonymousKey struct{}

// Anonymous marks ctx so requests made with it carry no bearer token.
// Login and register use it.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

// SetNotifier replaces the error notifier.
func (c *Client) SetNotifier(n Notifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// OnUnauthorized registers fn to run after a 401 on an authenticated request.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// Notify reports err to the notifier. Errors raised outside a request, such
// as local upload validation, go through here too.
func (c *Client) Notify(err error) {
	c.mu.RLock()
	n := c.notifier
	c.mu.RUnlock()
	if n != nil && err != nil {
		n(ClassOf(err), err)
	}
}

// Do sends a JSON request and decodes a 2xx body into out. body and out may
// be nil. path may carry a query string.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, out)
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Upload sends a multipart form of fields and files.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []FilePart, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		if f.ContentType != "" {
			h.Set("Content-Type", f.ContentType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	var token string
	if anon, _ := ctx.Value(anonymousKey{}).(bool); !anon {
		token, _ = c.store.Get(tokenstore.KeyToken)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(&NetworkError{Err: err}, false)
	}
	defer resp.Body.Close()

	if c.log != nil {
		c.log.DebugContext(ctx, "API request", "method", method, "path", path,
			"status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return c.fail(&ServerError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}, false)
		}
		return nil
	}

	var eb errorBody
	json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb)
	apiErr := fromResponse(resp.StatusCode, resp.Header, eb, token != "")
	return c.fail(apiErr, resp.StatusCode == http.StatusUnauthorized && token != "")
}

func (c *Client) fail(err error, unauthorized bool) error {
	if unauthorized {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	}
	c.Notify(err)
	return err
}
