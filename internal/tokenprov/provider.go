// Package tokenprov implements the token providers backing call credentials:
// cached bearer tokens with single-flight refresh, service-account JWT
// signing, OAuth2 refresh-token and client-credentials exchange, and the
// compute metadata token endpoint.
package tokenprov

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrFetch marks a failed token fetch or exchange. Callers decide whether and
// how to retry; the provider itself never retries.
var ErrFetch = errors.New("tokenprov: token fetch failed")

// Logger is an interface for optional logging of token refresh events.
type Logger interface {
	Printf(format string, args ...any)
}

// Token is a bearer token with its expiry. A zero Expiry means the expiry is
// unknown and the token is treated as valid until replaced.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// FetchFunc obtains a fresh token. It may block on network I/O. It runs on a
// context detached from any individual caller, so a cancelled RPC does not
// abort a refresh other callers are waiting on.
type FetchFunc func(ctx context.Context) (Token, error)

// Cache is an expiry-aware token cache with single-flight refresh. It is safe
// for concurrent use by multiple goroutines sharing one credential instance.
//
// When the cached token is absent or within the expiry leeway, the first
// caller starts one refresh; concurrent callers wait for that refresh instead
// of issuing redundant fetches. A caller whose context is cancelled while a
// refresh is pending unblocks with the cancellation error; the refresh keeps
// running for the remaining waiters.
type Cache struct {
	fetch        FetchFunc
	expiryLeeway time.Duration
	fetchTimeout time.Duration
	logger       Logger

	mu       sync.Mutex
	tok      Token
	inflight chan struct{}
	lastErr  error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets a logger for token refresh events.
func WithLogger(logger Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithExpiryLeeway overrides the refresh-before-expiry window.
func WithExpiryLeeway(leeway time.Duration) CacheOption {
	return func(c *Cache) {
		c.expiryLeeway = leeway
	}
}

// WithFetchTimeout bounds a single detached refresh operation.
func WithFetchTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = timeout
	}
}

// NewCache builds a cache around fetch.
func NewCache(fetch FetchFunc, opts ...CacheOption) *Cache {
	c := &Cache{
		fetch:        fetch,
		expiryLeeway: time.Minute, // refresh a bit before expiry to avoid near-expiry races
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid access token, refreshing if necessary. It blocks
// until a token is available, the refresh fails, or ctx is done.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.valid() {
		tok := c.tok.AccessToken
		c.mu.Unlock()
		return tok, nil
	}
	if c.inflight == nil {
		c.inflight = make(chan struct{})
		go c.refresh(c.inflight)
	}
	done := c.inflight
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return "", c.lastErr
	}
	// Serve the freshly fetched token even when its remaining lifetime is
	// inside the leeway window, so short-lived tokens cannot starve callers.
	return c.tok.AccessToken, nil
}

// refresh runs one fetch detached from caller cancellation and publishes the
// result to all waiters.
func (c *Cache) refresh(done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	tok, err := c.fetch(ctx)

	c.mu.Lock()
	if err != nil {
		c.lastErr = fmt.Errorf("%w: %v", ErrFetch, err)
	} else {
		c.tok = tok
		c.lastErr = nil
		if c.logger != nil {
			if tok.Expiry.IsZero() {
				c.logger.Printf("tokenprov: obtained new access token (no expiry)")
			} else {
				c.logger.Printf("tokenprov: obtained new access token (expires: %s)", tok.Expiry.Format(time.RFC3339))
			}
		}
	}
	c.inflight = nil
	c.mu.Unlock()

	close(done)
}

// valid reports whether the cached token is still usable considering the
// leeway window. Callers must hold c.mu.
func (c *Cache) valid() bool {
	if c.tok.AccessToken == "" {
		return false
	}
	if c.tok.Expiry.IsZero() {
		return true
	}
	return time.Until(c.tok.Expiry) > c.expiryLeeway
}
