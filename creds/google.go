package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/AmmannChristian/go-rpccreds/internal/envcfg"
	"github.com/AmmannChristian/go-rpccreds/internal/tokenprov"
)

// defaultState caches the resolved default credential process-wide. The cache
// is written once after the first successful resolution; failed resolutions
// are not cached, so a later call can retry.
var defaultState struct {
	mu   sync.Mutex
	cred Credential
}

// GoogleDefaultCredentials builds credentials with reasonable defaults for
// the current environment.
//
// Resolution probes, in order: a credential file named by the
// GOOGLE_APPLICATION_CREDENTIALS environment variable (a service-account key
// yields JWT access credentials, an authorized-user file yields refresh-token
// credentials), then the compute instance metadata endpoint. The resolved
// call credential is composed with SSL credentials using default roots. If
// neither source is available it fails with ErrNoDefaultCredentials.
//
// Only use these credentials when connecting to a Google endpoint.
func GoogleDefaultCredentials() (Credential, error) {
	defaultState.mu.Lock()
	defer defaultState.mu.Unlock()

	if defaultState.cred != nil {
		return defaultState.cred, nil
	}

	cred, err := resolveDefaultCredentials()
	if err != nil {
		return &invalidCredential{err: err}, err
	}

	defaultState.cred = cred
	return cred, nil
}

func resolveDefaultCredentials() (Credential, error) {
	cfg := envcfg.Load()

	if path := cfg.ApplicationCredentials; path != "" {
		callCred, err := credentialsFromFile(path)
		if err != nil {
			return nil, err
		}
		return composeWithSSL(callCred)
	}

	metadata := tokenprov.NewComputeMetadata(cfg.MetadataHost, nil)
	if metadata.Reachable(context.Background()) {
		return composeWithSSL(GoogleComputeEngineCredentials())
	}

	return nil, fmt.Errorf("%w: GOOGLE_APPLICATION_CREDENTIALS is unset and the metadata endpoint is unreachable", ErrNoDefaultCredentials)
}

// credentialsFromFile builds the call credential matching the JSON credential
// file at path.
func credentialsFromFile(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read credential file: %v", ErrNoDefaultCredentials, err)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: invalid credential file %s: %v", ErrNoDefaultCredentials, path, err)
	}

	switch probe.Type {
	case "service_account":
		cred, err := ServiceAccountJWTAccessCredentials(data, tokenprov.MaxJWTLifetime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDefaultCredentials, err)
		}
		return cred, nil
	case "authorized_user":
		cred, err := GoogleRefreshTokenCredentials(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDefaultCredentials, err)
		}
		return cred, nil
	default:
		return nil, fmt.Errorf("%w: unsupported credential file type %q", ErrNoDefaultCredentials, probe.Type)
	}
}

func composeWithSSL(callCred Credential) (Credential, error) {
	ssl, err := SslCredentials(SslCredentialsOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDefaultCredentials, err)
	}
	return CompositeCredentials(ssl, callCred)
}

// resetDefaultCredentials clears the process-wide cache. Tests only.
func resetDefaultCredentials() {
	defaultState.mu.Lock()
	defaultState.cred = nil
	defaultState.mu.Unlock()
}
