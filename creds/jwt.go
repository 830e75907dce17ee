package creds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AmmannChristian/go-rpccreds/internal/tokenprov"
)

// jwtSigningLeeway is how long before expiry a cached JWT is re-signed.
// Signing is local, so the window can be small.
const jwtSigningLeeway = 30 * time.Second

// jwtAccessCredential signs a JWT per service URL and reuses it while valid.
type jwtAccessCredential struct {
	signer *tokenprov.JWTSigner
	logger Logger

	mu       sync.RWMutex
	cached   tokenprov.Token
	audience string
}

// ServiceAccountJWTAccessCredentials builds credentials that sign short-lived
// JWTs with the private key embedded in a service-account JSON key.
//
// tokenLifetime is the lifetime of each signed JWT. Values above the fixed
// maximum of one hour are silently clamped to it; zero or negative values
// select the maximum. Construction fails if jsonKey cannot be parsed into a
// key and issuer pair.
func ServiceAccountJWTAccessCredentials(jsonKey []byte, tokenLifetime time.Duration, opts ...Option) (Credential, error) {
	o := buildOptions(opts)

	signer, err := tokenprov.NewJWTSigner(jsonKey, tokenLifetime)
	if err != nil {
		return invalid(err)
	}

	return &jwtAccessCredential{signer: signer, logger: o.logger}, nil
}

// ApplyToCall attaches a signed JWT whose audience is the call's service URL,
// re-signing when the cached token expired or the audience changed.
func (c *jwtAccessCredential) ApplyToCall(ctx context.Context, call *Call) error {
	audience := call.ServiceURL()

	c.mu.RLock()
	if c.cachedValid(audience) {
		token := c.cached.AccessToken
		c.mu.RUnlock()
		call.SetMetadata("authorization", "Bearer "+token)
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	// Another call may have re-signed while we waited for the write lock.
	if !c.cachedValid(audience) {
		token, err := c.signer.Sign(audience)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("creds: service_account_jwt credential: %w", err)
		}
		c.cached = token
		c.audience = audience
		if c.logger != nil {
			c.logger.Printf("creds: signed JWT for %s (expires: %s)", audience, token.Expiry.Format(time.RFC3339))
		}
	}
	token := c.cached.AccessToken
	c.mu.Unlock()

	call.SetMetadata("authorization", "Bearer "+token)
	return nil
}

// cachedValid reports whether the cached JWT can be reused for audience.
// Callers must hold c.mu.
func (c *jwtAccessCredential) cachedValid(audience string) bool {
	if c.cached.AccessToken == "" || c.audience != audience {
		return false
	}
	return time.Until(c.cached.Expiry) > jwtSigningLeeway
}

func (c *jwtAccessCredential) credential() {}
