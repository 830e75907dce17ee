package creds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AmmannChristian/go-rpccreds/internal/testutil"
)

func writeCredentialFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write credential file: %v", err)
	}
	return path
}

func TestGoogleDefaultCredentials_ServiceAccountFile(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeCredentialFile(t, jsonKey))

	cred, err := GoogleDefaultCredentials()
	if err != nil {
		t.Fatalf("GoogleDefaultCredentials failed: %v", err)
	}

	if secureView(cred) == nil {
		t.Error("default credentials should resolve to an SSL composite")
	}

	composite, ok := cred.(*compositeCredential)
	if !ok {
		t.Fatalf("expected composite, got %T", cred)
	}
	if len(composite.callParts) != 1 {
		t.Fatalf("expected 1 call part, got %d", len(composite.callParts))
	}
	if _, ok := composite.callParts[0].(*jwtAccessCredential); !ok {
		t.Errorf("service-account file should yield JWT access credentials, got %T", composite.callParts[0])
	}
}

func TestGoogleDefaultCredentials_AuthorizedUserFile(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeCredentialFile(t, testutil.RefreshTokenJSON()))

	cred, err := GoogleDefaultCredentials()
	if err != nil {
		t.Fatalf("GoogleDefaultCredentials failed: %v", err)
	}

	composite := cred.(*compositeCredential)
	if len(composite.callParts) != 1 {
		t.Fatalf("expected 1 call part, got %d", len(composite.callParts))
	}
	if kindOf(composite.callParts[0]) != "refresh_token" {
		t.Errorf("authorized-user file should yield refresh-token credentials, got %s", kindOf(composite.callParts[0]))
	}
}

func TestGoogleDefaultCredentials_MetadataFallback(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	host := testutil.NewMockMetadataServer(t, "gce-token")
	t.Setenv("GCE_METADATA_HOST", host)

	cred, err := GoogleDefaultCredentials()
	if err != nil {
		t.Fatalf("GoogleDefaultCredentials failed: %v", err)
	}

	composite := cred.(*compositeCredential)
	if len(composite.callParts) != 1 || kindOf(composite.callParts[0]) != "compute_engine" {
		t.Fatalf("expected a compute_engine call part, got %v", composite.callParts)
	}

	call := NewCall("https://service.example.com/pkg.Service")
	if err := composite.ApplyToCall(context.Background(), call); err != nil {
		t.Fatalf("ApplyToCall failed: %v", err)
	}
	got := call.Metadata().Get("authorization")
	if len(got) != 1 || got[0] != "Bearer gce-token" {
		t.Errorf("unexpected authorization entries: %v", got)
	}
}

func TestGoogleDefaultCredentials_NothingAvailable(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	// Point the metadata probe at a closed port.
	t.Setenv("GCE_METADATA_HOST", "127.0.0.1:1")

	cred, err := GoogleDefaultCredentials()
	if !errors.Is(err, ErrNoDefaultCredentials) {
		t.Errorf("expected ErrNoDefaultCredentials, got %v", err)
	}
	if cred == nil || constructionErr(cred) == nil {
		t.Error("failed resolution should return an invalid handle, not nil")
	}
}

func TestGoogleDefaultCredentials_CachedAfterFirstSuccess(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeCredentialFile(t, jsonKey))

	first, err := GoogleDefaultCredentials()
	if err != nil {
		t.Fatalf("GoogleDefaultCredentials failed: %v", err)
	}

	// Break the environment; the cached resolution must keep being served.
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/key.json")

	second, err := GoogleDefaultCredentials()
	if err != nil {
		t.Fatalf("cached GoogleDefaultCredentials failed: %v", err)
	}
	if first != second {
		t.Error("resolution result should be cached process-wide")
	}
}

func TestGoogleDefaultCredentials_FailureIsNotCached(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GCE_METADATA_HOST", "127.0.0.1:1")

	if _, err := GoogleDefaultCredentials(); !errors.Is(err, ErrNoDefaultCredentials) {
		t.Fatalf("expected ErrNoDefaultCredentials, got %v", err)
	}

	// A later call with a fixed environment succeeds.
	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeCredentialFile(t, jsonKey))

	if _, err := GoogleDefaultCredentials(); err != nil {
		t.Errorf("resolution should retry after a failure: %v", err)
	}
}

func TestGoogleDefaultCredentials_UnsupportedFileType(t *testing.T) {
	resetDefaultCredentials()
	t.Cleanup(resetDefaultCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeCredentialFile(t, []byte(`{"type":"external_account"}`)))

	_, err := GoogleDefaultCredentials()
	if !errors.Is(err, ErrNoDefaultCredentials) {
		t.Errorf("expected ErrNoDefaultCredentials, got %v", err)
	}
}
