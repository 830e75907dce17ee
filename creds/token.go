package creds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AmmannChristian/go-rpccreds/internal/envcfg"
	"github.com/AmmannChristian/go-rpccreds/internal/tokenprov"
)

// Metadata keys attached by IAM credentials.
const (
	iamAuthorizationTokenKey = "x-goog-iam-authorization-token"
	iamAuthoritySelectorKey  = "x-goog-iam-authority-selector"
)

// Option configures token-bearing credentials.
type Option func(*credentialOptions)

type credentialOptions struct {
	logger       Logger
	expiryLeeway time.Duration
	tokenURL     string
}

// WithLogger sets a custom logger for token refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(o *credentialOptions) {
		o.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(o *credentialOptions) {
		o.logger = log.Default()
	}
}

// WithExpiryLeeway overrides the window before expiry in which a cached token
// is refreshed. The default is one minute.
func WithExpiryLeeway(leeway time.Duration) Option {
	return func(o *credentialOptions) {
		o.expiryLeeway = leeway
	}
}

// WithTokenURL overrides the token-exchange endpoint. Intended for talking to
// non-Google identity providers and for tests.
func WithTokenURL(url string) Option {
	return func(o *credentialOptions) {
		o.tokenURL = url
	}
}

func buildOptions(opts []Option) credentialOptions {
	var o credentialOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o credentialOptions) cacheOptions() []tokenprov.CacheOption {
	var cacheOpts []tokenprov.CacheOption
	if o.logger != nil {
		cacheOpts = append(cacheOpts, tokenprov.WithLogger(o.logger))
	}
	if o.expiryLeeway > 0 {
		cacheOpts = append(cacheOpts, tokenprov.WithExpiryLeeway(o.expiryLeeway))
	}
	return cacheOpts
}

// tokenCredential is a call credential backed by a refreshing token provider.
// One cache per credential; never shared across credentials.
type tokenCredential struct {
	name  string
	cache *tokenprov.Cache
}

func newTokenCredential(name string, fetch tokenprov.FetchFunc, o credentialOptions) *tokenCredential {
	return &tokenCredential{
		name:  name,
		cache: tokenprov.NewCache(fetch, o.cacheOptions()...),
	}
}

// ApplyToCall attaches a bearer token, obtaining or refreshing one first if
// the cached token is absent or expired.
func (c *tokenCredential) ApplyToCall(ctx context.Context, call *Call) error {
	token, err := c.cache.Token(ctx)
	if err != nil {
		return fmt.Errorf("creds: %s credential: %w", c.name, err)
	}
	call.SetMetadata("authorization", "Bearer "+token)
	return nil
}

func (c *tokenCredential) credential() {}

// accessTokenCredential wraps a pre-obtained token verbatim.
type accessTokenCredential struct {
	token string
}

// AccessTokenCredentials builds credentials from an OAuth2 access token that
// was obtained out of band. The token is attached verbatim to every call and
// never refreshed; its validity is the caller's responsibility.
func AccessTokenCredentials(accessToken string) (Credential, error) {
	if accessToken == "" {
		return invalid(errors.New("access token is empty"))
	}
	return &accessTokenCredential{token: accessToken}, nil
}

func (c *accessTokenCredential) ApplyToCall(ctx context.Context, call *Call) error {
	call.SetMetadata("authorization", "Bearer "+c.token)
	return nil
}

func (c *accessTokenCredential) credential() {}

// iamCredential attaches two fixed IAM metadata entries per call.
type iamCredential struct {
	authorizationToken string
	authoritySelector  string
}

// GoogleIAMCredentials builds IAM credentials from a fixed authorization
// token and authority selector. There is no expiry or refresh logic.
func GoogleIAMCredentials(authorizationToken, authoritySelector string) (Credential, error) {
	if authorizationToken == "" {
		return invalid(errors.New("IAM authorization token is empty"))
	}
	if authoritySelector == "" {
		return invalid(errors.New("IAM authority selector is empty"))
	}
	return &iamCredential{
		authorizationToken: authorizationToken,
		authoritySelector:  authoritySelector,
	}, nil
}

func (c *iamCredential) ApplyToCall(ctx context.Context, call *Call) error {
	call.SetMetadata(iamAuthorizationTokenKey, c.authorizationToken)
	call.SetMetadata(iamAuthoritySelectorKey, c.authoritySelector)
	return nil
}

func (c *iamCredential) credential() {}

// GoogleRefreshTokenCredentials builds credentials from an authorized-user
// JSON refresh token (refresh_token plus client_id and client_secret). On
// first use, and again on expiry, the refresh token is exchanged for a
// short-lived access token which is cached.
func GoogleRefreshTokenCredentials(jsonRefreshToken []byte, opts ...Option) (Credential, error) {
	o := buildOptions(opts)

	exchanger, err := tokenprov.NewRefreshExchanger(jsonRefreshToken, o.tokenURL)
	if err != nil {
		return invalid(err)
	}

	return newTokenCredential("refresh_token", exchanger.Fetch, o), nil
}

// OAuth2ClientCredentials builds call credentials using the OAuth2 client
// credentials flow against an arbitrary identity provider.
//
// Parameters:
//   - tokenURL: OAuth2 token endpoint (e.g., "https://auth.example.com/oauth/v2/token")
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret
//   - scopes: Space-separated list of OAuth2 scopes (e.g., "openid profile email")
func OAuth2ClientCredentials(tokenURL, clientID, clientSecret, scopes string, opts ...Option) (Credential, error) {
	o := buildOptions(opts)

	flow, err := tokenprov.NewClientCredentials(tokenURL, clientID, clientSecret, scopes)
	if err != nil {
		return invalid(err)
	}

	return newTokenCredential("oauth2", flow.Fetch, o), nil
}

// GoogleComputeEngineCredentials builds credentials that fetch access tokens
// for the instance's default service account from the compute metadata
// endpoint. Only use these when running on a compute instance.
func GoogleComputeEngineCredentials(opts ...Option) Credential {
	o := buildOptions(opts)

	provider := tokenprov.NewComputeMetadata(envcfg.Load().MetadataHost, nil)
	return newTokenCredential("compute_engine", provider.Fetch, o)
}
