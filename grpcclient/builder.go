package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AmmannChristian/go-rpccreds/creds"
	"google.golang.org/grpc"
)

// Builder provides a fluent interface for constructing authenticated gRPC
// channels from the credential factories in package creds.
type Builder struct {
	address string

	// Transport credential configuration
	insecure    bool
	sslEnabled  bool
	sslCAFile   string
	sslCertFile string
	sslKeyFile  string

	// Call credential configuration, applied in the order the With methods
	// were invoked
	callCreds []func() (creds.Credential, error)

	// Additional channel options
	channelOpts []creds.ChannelOption
}

// NewBuilder creates a new channel builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithInsecure selects an unencrypted, unauthenticated transport. Mutually
// exclusive with WithSSL.
func (b *Builder) WithInsecure() *Builder {
	b.insecure = true
	return b
}

// WithSSL enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to a PEM bundle of root certificates (optional; empty selects default roots)
//   - certFile: Path to the client certificate chain for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to the client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithSSL(caFile, certFile, keyFile string) *Builder {
	b.sslEnabled = true
	b.sslCAFile = caFile
	b.sslCertFile = certFile
	b.sslKeyFile = keyFile
	return b
}

// WithServiceAccountJWT adds service-account JWT access credentials read from
// keyFile. A tokenLifetime above the fixed maximum is clamped; zero selects
// the maximum.
func (b *Builder) WithServiceAccountJWT(keyFile string, tokenLifetime time.Duration) *Builder {
	b.callCreds = append(b.callCreds, func() (creds.Credential, error) {
		jsonKey, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: failed to read service account key: %w", err)
		}
		return creds.ServiceAccountJWTAccessCredentials(jsonKey, tokenLifetime)
	})
	return b
}

// WithRefreshToken adds refresh-token credentials read from tokenFile.
func (b *Builder) WithRefreshToken(tokenFile string) *Builder {
	b.callCreds = append(b.callCreds, func() (creds.Credential, error) {
		jsonToken, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: failed to read refresh token: %w", err)
		}
		return creds.GoogleRefreshTokenCredentials(jsonToken)
	})
	return b
}

// WithAccessToken adds a fixed, pre-obtained access token.
func (b *Builder) WithAccessToken(token string) *Builder {
	b.callCreds = append(b.callCreds, func() (creds.Credential, error) {
		return creds.AccessTokenCredentials(token)
	})
	return b
}

// WithIAM adds IAM credentials with a fixed authorization token and authority
// selector.
func (b *Builder) WithIAM(authorizationToken, authoritySelector string) *Builder {
	b.callCreds = append(b.callCreds, func() (creds.Credential, error) {
		return creds.GoogleIAMCredentials(authorizationToken, authoritySelector)
	})
	return b
}

// WithOAuth2 adds OAuth2 client-credentials authentication against an
// arbitrary identity provider.
//
// Parameters:
//   - tokenURL: OAuth2 token endpoint (e.g., "https://auth.example.com/oauth/v2/token")
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret
//   - scopes: Space-separated list of OAuth2 scopes (e.g., "openid profile email")
func (b *Builder) WithOAuth2(tokenURL, clientID, clientSecret, scopes string) *Builder {
	b.callCreds = append(b.callCreds, func() (creds.Credential, error) {
		return creds.OAuth2ClientCredentials(tokenURL, clientID, clientSecret, scopes)
	})
	return b
}

// WithDialOptions adds custom gRPC dial options. These options are applied
// after the options derived from the credentials.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.channelOpts = append(b.channelOpts, creds.WithDialOptions(opts...))
	return b
}

// Build constructs the channel with the configured credentials.
//
// Returns:
//   - *creds.Channel: Established channel handle
//   - error: Error if the configuration is invalid
func (b *Builder) Build(ctx context.Context) (*creds.Channel, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}
	if b.insecure && b.sslEnabled {
		return nil, errors.New("grpcclient: WithInsecure and WithSSL are mutually exclusive")
	}

	combined, err := b.transportCredentials()
	if err != nil {
		return nil, err
	}

	for _, build := range b.callCreds {
		callCred, err := build()
		if err != nil {
			return nil, err
		}
		combined, err = creds.CompositeCredentials(combined, callCred)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: failed to compose credentials: %w", err)
		}
	}

	return creds.CreateChannel(b.address, combined, b.channelOpts...)
}

// transportCredentials resolves the transport part of the composite. Call
// credentials without an explicit transport selection default to SSL with
// platform roots to avoid accidental plaintext connections.
func (b *Builder) transportCredentials() (creds.Credential, error) {
	if b.insecure {
		return creds.InsecureCredentials(), nil
	}

	var options creds.SslCredentialsOptions
	if b.sslEnabled {
		var err error
		if options.RootCerts, err = readOptional(b.sslCAFile); err != nil {
			return nil, err
		}
		if options.CertChain, err = readOptional(b.sslCertFile); err != nil {
			return nil, err
		}
		if options.PrivateKey, err = readOptional(b.sslKeyFile); err != nil {
			return nil, err
		}
	}

	ssl, err := creds.SslCredentials(options)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: SSL config failed: %w", err)
	}
	return ssl, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: failed to read %s: %w", path, err)
	}
	return data, nil
}
