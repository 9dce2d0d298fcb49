package aiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default connection timeouts for the HTTP transport
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Request is a single exchange with the AI back-end
type Request struct {
	Method  string
	Path    string
	Body    []byte // JSON body, nil for GET
	Timeout time.Duration
}

// Response is the raw answer to a Request. The caller must close Body.
type Response struct {
	StatusCode int

	// Body streams the response payload
	Body io.ReadCloser

	// ContentLength is the declared body length, -1 when unknown
	ContentLength int64
}

// Transport performs request/response exchanges against the back-end
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport implements Transport over net/http against a base URL
type HTTPTransport struct {
	baseURL string
	rt      http.RoundTripper
}

// NewHTTPTransport creates a transport rooted at baseURL (e.g. http://192.168.1.49:8000)
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		rt: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          4,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			// Keep Content-Length intact for binary downloads
			DisableCompression: true,
		},
	}
}

// Do implements Transport. The timeout covers the whole exchange, body read included.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", uuid.New().String())

	client := &http.Client{
		Transport: t.rt,
		Timeout:   req.Timeout,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
	}, nil
}
