// Package proxy forwards browser API calls from the web server to the API
// service.
package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/response"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
			// Redirects go back to the browser untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// ServeHTTP forwards the request path and query unchanged. The request body
// is streamed so large uploads are not buffered here.
func (p *ServiceProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.baseURL + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	resp, err := p.forward(r, target)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "path", r.URL.Path)
		response.Error(w, http.StatusBadGateway, "API unavailable", response.CodeBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if !shouldCopyHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

func (p *ServiceProxy) forward(r *http.Request, target string) (*http.Response, error) {
	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = r.ContentLength

	for key, values := range r.Header {
		if shouldCopyHeader(key) {
			req.Header[key] = values
		}
	}

	if requestID, ok := r.Context().Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	if host, _, ok := strings.Cut(r.RemoteAddr, ":"); ok && r.Header.Get("X-Forwarded-For") == "" {
		req.Header.Set("X-Forwarded-For", host)
	}
	req.Header.Set("X-Forwarded-Host", r.Host)

	logger.DebugContext(r.Context(), "Proxying request", "method", r.Method, "url", redact(target))
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.RawQuery = ""
	return u.String()
}

func shouldCopyHeader(key string) bool {
	switch strings.ToLower(key) {
	case "host", "connection", "upgrade", "proxy-connection", "proxy-authenticate",
		"proxy-authorization", "te", "trailers", "transfer-encoding", "keep-alive":
		return false
	}
	return true
}
