package creds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AmmannChristian/go-rpccreds/internal/testutil"
)

func TestRegistry_BuiltinKinds(t *testing.T) {
	want := []string{
		"access_token",
		"compute_engine",
		"google_default",
		"iam",
		"insecure",
		"oauth2",
		"refresh_token",
		"service_account_jwt",
		"ssl",
	}

	kinds := Kinds()
	seen := make(map[string]bool, len(kinds))
	for _, kind := range kinds {
		seen[kind] = true
	}
	for _, kind := range want {
		if !seen[kind] {
			t.Errorf("builtin kind %q is not registered", kind)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	if err := Register("", func(map[string]string) (Credential, error) { return InsecureCredentials(), nil }); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty kind: expected ErrConfiguration, got %v", err)
	}
	if err := Register("broken", nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil factory: expected ErrConfiguration, got %v", err)
	}
	if err := Register("insecure", func(map[string]string) (Credential, error) { return InsecureCredentials(), nil }); !errors.Is(err, ErrConfiguration) {
		t.Errorf("duplicate kind: expected ErrConfiguration, got %v", err)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	cred, err := New("telepathy", nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if cred == nil {
		t.Error("New should return an invalid handle, not nil")
	}
}

func TestNew_Insecure(t *testing.T) {
	cred, err := New("insecure", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if kindOf(cred) != "insecure" {
		t.Errorf("expected an insecure credential, got %s", kindOf(cred))
	}
}

func TestNew_AccessToken(t *testing.T) {
	cred, err := New("access_token", map[string]string{"access_token": "opaque-token"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	call := NewCall("https://service.example.com/pkg.Service")
	if err := cred.ApplyToCall(context.Background(), call); err != nil {
		t.Fatalf("ApplyToCall failed: %v", err)
	}
	got := call.Metadata().Get("authorization")
	if len(got) != 1 || got[0] != "Bearer opaque-token" {
		t.Errorf("unexpected authorization entries: %v", got)
	}
}

func TestNew_SslFromFiles(t *testing.T) {
	dir := t.TempDir()
	rootsPath := filepath.Join(dir, "roots.pem")
	if err := os.WriteFile(rootsPath, testutil.GenerateCACertPEM(t), 0o600); err != nil {
		t.Fatalf("failed to write roots file: %v", err)
	}

	cred, err := New("ssl", map[string]string{"root_certs_file": rootsPath})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if secureView(cred) == nil {
		t.Error("ssl kind should build a transport-securing credential")
	}
}

func TestNew_SslMissingFile(t *testing.T) {
	cred, err := New("ssl", map[string]string{"root_certs_file": filepath.Join(t.TempDir(), "absent.pem")})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if constructionErr(cred) == nil {
		t.Error("expected an invalid handle carrying the construction error")
	}
}

func TestNew_ServiceAccountJWT(t *testing.T) {
	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)
	keyPath := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(keyPath, jsonKey, 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	cred, err := New("service_account_jwt", map[string]string{
		"json_key_file":          keyPath,
		"token_lifetime_seconds": "1800",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if kindOf(cred) != "service_account_jwt" {
		t.Errorf("expected a service_account_jwt credential, got %s", kindOf(cred))
	}
}

func TestNew_ServiceAccountJWTBadLifetime(t *testing.T) {
	_, err := New("service_account_jwt", map[string]string{"token_lifetime_seconds": "soon"})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
