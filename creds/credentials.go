package creds

import (
	"context"
	"fmt"
)

// Credential encapsulates the state a client needs to authenticate with a
// server: transport security material, per-call bearer tokens, or a
// combination of both.
//
// Credentials are immutable after construction apart from internal token
// caching, and are safe to share across any number of channels and concurrent
// calls. Factories return a non-nil handle even on failure; the invalid
// handle yields a lame channel whose calls all fail with ErrAuthentication,
// so misconfiguration surfaces at call time instead of being silently
// dropped.
type Credential interface {
	// ApplyToCall attaches this credential's per-call metadata to call. It is
	// safe for concurrent use; token refresh is internally synchronized. A
	// failure aborts only the individual call.
	ApplyToCall(ctx context.Context, call *Call) error

	// credential closes the interface. Transport-security introspection and
	// channel construction are capabilities of this package, not of the
	// public credential surface.
	credential()
}

// Logger is an interface for optional logging of token refresh events.
type Logger interface {
	Printf(format string, args ...any)
}

// invalidCredential is the handle factories return when construction fails.
// It carries the construction error and fails every call with it.
type invalidCredential struct {
	err error
}

func (c *invalidCredential) ApplyToCall(ctx context.Context, call *Call) error {
	return fmt.Errorf("%w: credential was not constructed: %v", ErrAuthentication, c.err)
}

func (c *invalidCredential) credential() {}

// invalid wraps err into ErrConfiguration and returns the matching invalid
// handle, preserving the factory contract of never returning a nil handle.
func invalid(err error) (Credential, error) {
	err = fmt.Errorf("%w: %v", ErrConfiguration, err)
	return &invalidCredential{err: err}, err
}

// kindOf names a credential variant for diagnostics.
func kindOf(c Credential) string {
	switch c := c.(type) {
	case *sslCredential:
		return "ssl"
	case *insecureCredential:
		return "insecure"
	case *compositeCredential:
		return "composite"
	case *jwtAccessCredential:
		return "service_account_jwt"
	case *accessTokenCredential:
		return "access_token"
	case *iamCredential:
		return "iam"
	case *tokenCredential:
		return c.name
	case *invalidCredential:
		return "invalid"
	default:
		return "unknown"
	}
}

// secureView returns the transport-security view of c, or nil for variants
// that cannot secure a channel. For composites it is the view of the
// transport part.
func secureView(c Credential) *sslCredential {
	switch c := c.(type) {
	case *sslCredential:
		return c
	case *compositeCredential:
		if c.transport == nil {
			return nil
		}
		return secureView(c.transport)
	default:
		return nil
	}
}

// transportPart returns the operand of c that establishes transport, secure
// or plaintext. It is nil for call-only credentials.
func transportPart(c Credential) Credential {
	switch c := c.(type) {
	case *sslCredential, *insecureCredential:
		return c
	case *compositeCredential:
		return c.transport
	default:
		return nil
	}
}

// constructionErr returns the construction error carried by an invalid
// handle, or nil for usable credentials.
func constructionErr(c Credential) error {
	if ic, ok := c.(*invalidCredential); ok {
		return ic.err
	}
	return nil
}
