package creds

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Factory builds a credential of one kind from string-keyed options, letting
// configuration files and plugins name credential kinds without touching
// channel-construction code.
type Factory func(opts map[string]string) (Credential, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: make(map[string]Factory),
}

// Register adds a named credential factory. Registering a kind twice is a
// programming error and fails.
func Register(kind string, factory Factory) error {
	if kind == "" || factory == nil {
		return fmt.Errorf("%w: registry entries need a kind and a factory", ErrConfiguration)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.factories[kind]; ok {
		return fmt.Errorf("%w: credential kind %q is already registered", ErrConfiguration, kind)
	}
	registry.factories[kind] = factory
	return nil
}

// New builds a credential of the named kind with the given options.
func New(kind string, opts map[string]string) (Credential, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[kind]
	registry.mu.RUnlock()

	if !ok {
		return invalid(fmt.Errorf("unknown credential kind %q", kind))
	}
	return factory(opts)
}

// Kinds lists the registered credential kinds.
func Kinds() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	kinds := make([]string, 0, len(registry.factories))
	for kind := range registry.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

func optFile(opts map[string]string, key string) ([]byte, error) {
	path, ok := opts[key]
	if !ok || path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func init() {
	builtins := map[string]Factory{
		"ssl": func(opts map[string]string) (Credential, error) {
			var options SslCredentialsOptions
			var err error
			if options.RootCerts, err = optFile(opts, "root_certs_file"); err != nil {
				return invalid(err)
			}
			if options.PrivateKey, err = optFile(opts, "private_key_file"); err != nil {
				return invalid(err)
			}
			if options.CertChain, err = optFile(opts, "cert_chain_file"); err != nil {
				return invalid(err)
			}
			return SslCredentials(options)
		},
		"insecure": func(map[string]string) (Credential, error) {
			return InsecureCredentials(), nil
		},
		"access_token": func(opts map[string]string) (Credential, error) {
			return AccessTokenCredentials(opts["access_token"])
		},
		"iam": func(opts map[string]string) (Credential, error) {
			return GoogleIAMCredentials(opts["authorization_token"], opts["authority_selector"])
		},
		"service_account_jwt": func(opts map[string]string) (Credential, error) {
			key, err := optFile(opts, "json_key_file")
			if err != nil {
				return invalid(err)
			}
			var lifetime time.Duration
			if raw, ok := opts["token_lifetime_seconds"]; ok {
				seconds, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return invalid(fmt.Errorf("invalid token_lifetime_seconds: %w", err))
				}
				lifetime = time.Duration(seconds) * time.Second
			}
			return ServiceAccountJWTAccessCredentials(key, lifetime)
		},
		"refresh_token": func(opts map[string]string) (Credential, error) {
			token, err := optFile(opts, "json_refresh_token_file")
			if err != nil {
				return invalid(err)
			}
			return GoogleRefreshTokenCredentials(token)
		},
		"oauth2": func(opts map[string]string) (Credential, error) {
			return OAuth2ClientCredentials(opts["token_url"], opts["client_id"], opts["client_secret"], opts["scopes"])
		},
		"compute_engine": func(map[string]string) (Credential, error) {
			return GoogleComputeEngineCredentials(), nil
		},
		"google_default": func(map[string]string) (Credential, error) {
			return GoogleDefaultCredentials()
		},
	}

	for kind, factory := range builtins {
		if err := Register(kind, factory); err != nil {
			panic(err)
		}
	}
}
