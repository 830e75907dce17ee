package creds

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/AmmannChristian/go-rpccreds/internal/envcfg"
)

// SslCredentialsOptions configures SSL credentials. All fields hold PEM
// encodings and are optional.
type SslCredentialsOptions struct {
	// RootCerts is the PEM encoding of the server root certificates. If
	// empty, the default roots are used; the GRPC_DEFAULT_SSL_ROOTS_FILE_PATH
	// environment variable can point to an alternate bundle, and failing
	// that the platform trust store applies.
	RootCerts []byte

	// PrivateKey is the PEM encoding of the client's private key. May be
	// empty if the client has no identity, but must be paired with CertChain.
	PrivateKey []byte

	// CertChain is the PEM encoding of the client's certificate chain. Must
	// be paired with PrivateKey.
	CertChain []byte
}

// sslCredential carries resolved transport security. Applying it to a call is
// a no-op; the TLS parameters take effect at connection setup.
type sslCredential struct {
	config *tls.Config
}

// SslCredentials builds SSL credentials from options.
//
// A private key without a certificate chain (or the reverse) is a
// configuration error reported here, not deferred to connection time.
func SslCredentials(options SslCredentialsOptions) (Credential, error) {
	if (len(options.PrivateKey) == 0) != (len(options.CertChain) == 0) {
		return invalid(errors.New("private key and certificate chain must be provided together"))
	}

	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	roots := options.RootCerts
	if len(roots) == 0 {
		if path := envcfg.Load().SSLRootsFile; path != "" {
			pem, err := os.ReadFile(path)
			if err != nil {
				return invalid(fmt.Errorf("failed to read root certificates from %s: %v", path, err))
			}
			roots = pem
		}
	}
	if len(roots) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(roots) {
			return invalid(errors.New("failed to parse root certificates"))
		}
		config.RootCAs = pool
	}

	if len(options.PrivateKey) > 0 {
		cert, err := tls.X509KeyPair(options.CertChain, options.PrivateKey)
		if err != nil {
			return invalid(fmt.Errorf("failed to load client certificate: %v", err))
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return &sslCredential{config: config}, nil
}

// ApplyToCall is a no-op: transport security is established at connection
// setup, not per call.
func (c *sslCredential) ApplyToCall(ctx context.Context, call *Call) error {
	return nil
}

func (c *sslCredential) credential() {}

// tlsConfig returns a copy safe to hand to the transport layer.
func (c *sslCredential) tlsConfig() *tls.Config {
	return c.config.Clone()
}
