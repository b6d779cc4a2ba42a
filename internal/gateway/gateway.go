// Package gateway wraps outbound HTTP calls with idempotency headers and
// single-flight collapsing of duplicate concurrent requests.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Idempotency header names. The server is not required to honor these;
// they exist so server-side deduplication of retried writes can be
// strengthened independently.
const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderRequestID      = "X-Request-Id"
)

// DefaultTimeout bounds a single request when the caller's context carries
// no deadline.
const DefaultTimeout = 2 * time.Minute

// Result is a settled response: status plus the fully read body, so every
// caller sharing a collapsed round trip can decode it independently.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports whether the status code is in the 2xx range.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Gateway issues idempotent requests. Concurrent calls that share a cache
// key collapse into one server-visible request; the cache reflects "in
// flight", not "completed", so sequential repeats proceed normally.
type Gateway struct {
	client *http.Client
	group  singleflight.Group
	header http.Header
}

// New creates a gateway over the given HTTP client. A nil client uses a
// default with DefaultTimeout.
func New(client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Gateway{client: client, header: http.Header{}}
}

// SetHeader sets a header attached to every outgoing request, such as an
// Authorization bearer token.
func (g *Gateway) SetHeader(key, value string) {
	g.header.Set(key, value)
}

// Do issues a request. cacheKey selects which in-flight calls collapse;
// when empty it defaults to method + "-" + url.
func (g *Gateway) Do(ctx context.Context, method, url string, body []byte, cacheKey string) (*Result, error) {
	key := cacheKey
	if key == "" {
		key = method + "-" + url
	}

	// Callers with the same key share one round trip; whichever reaches
	// the group first issues the request, the rest wait on its result.
	// singleflight forgets the key as soon as the call settles.
	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.send(ctx, method, url, body)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (g *Gateway) send(ctx context.Context, method, url string, body []byte) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range g.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Fresh token per server-visible request, not per caller.
	token := uuid.NewString()
	req.Header.Set(HeaderIdempotencyKey, token)
	req.Header.Set(HeaderRequestID, token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header.Clone(),
	}, nil
}
