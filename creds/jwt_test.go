package creds

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AmmannChristian/go-rpccreds/internal/testutil"
)

func applyJWT(t *testing.T, cred Credential, serviceURL string) string {
	t.Helper()

	call := NewCall(serviceURL)
	if err := cred.ApplyToCall(context.Background(), call); err != nil {
		t.Fatalf("ApplyToCall failed: %v", err)
	}
	got := call.Metadata().Get("authorization")
	if len(got) != 1 || !strings.HasPrefix(got[0], "Bearer ") {
		t.Fatalf("unexpected authorization entries: %v", got)
	}
	return strings.TrimPrefix(got[0], "Bearer ")
}

func parseJWTClaims(t *testing.T, raw string) jwt.MapClaims {
	t.Helper()

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		t.Fatalf("failed to parse JWT: %v", err)
	}
	return claims
}

func claimInt64(t *testing.T, claims jwt.MapClaims, name string) int64 {
	t.Helper()

	v, ok := claims[name].(float64)
	if !ok {
		t.Fatalf("claim %s missing or not numeric: %v", name, claims[name])
	}
	return int64(v)
}

func TestServiceAccountJWTAccessCredentials_SignsForServiceURL(t *testing.T) {
	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)

	cred, err := ServiceAccountJWTAccessCredentials(jsonKey, 30*time.Minute)
	if err != nil {
		t.Fatalf("ServiceAccountJWTAccessCredentials failed: %v", err)
	}

	raw := applyJWT(t, cred, "https://service.example.com/pkg.Service")
	claims := parseJWTClaims(t, raw)

	if claims["iss"] != "test-account@example.iam.gserviceaccount.com" {
		t.Errorf("unexpected issuer: %v", claims["iss"])
	}
	if claims["sub"] != claims["iss"] {
		t.Errorf("subject should equal issuer, got %v", claims["sub"])
	}
	if claims["jti"] == "" || claims["jti"] == nil {
		t.Error("expected a jti claim")
	}

	delta := claimInt64(t, claims, "exp") - claimInt64(t, claims, "iat")
	if delta != int64((30 * time.Minute).Seconds()) {
		t.Errorf("expected 30m lifetime, got %ds", delta)
	}
}

func TestServiceAccountJWTAccessCredentials_LifetimeClamped(t *testing.T) {
	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)

	cred, err := ServiceAccountJWTAccessCredentials(jsonKey, 999999999*time.Second)
	if err != nil {
		t.Fatalf("ServiceAccountJWTAccessCredentials failed: %v", err)
	}

	raw := applyJWT(t, cred, "https://service.example.com/pkg.Service")
	claims := parseJWTClaims(t, raw)

	delta := claimInt64(t, claims, "exp") - claimInt64(t, claims, "iat")
	if delta != 3600 {
		t.Errorf("lifetime should clamp to 3600s, got %d", delta)
	}
}

func TestServiceAccountJWTAccessCredentials_ReusedWhileValid(t *testing.T) {
	jsonKey, _ := testutil.ServiceAccountKeyJSON(t)

	cred, err := ServiceAccountJWTAccessCredentials(jsonKey, time.Hour)
	if err != nil {
		t.Fatalf("ServiceAccountJWTAccessCredentials failed: %v", err)
	}

	first := applyJWT(t, cred, "https://service.example.com/pkg.Service")
	second := applyJWT(t, cred, "https://service.example.com/pkg.Service")
	if first != second {
		t.Error("JWT should be reused while valid for the same service URL")
	}

	other := applyJWT(t, cred, "https://other.example.com/pkg.Service")
	if other == first {
		t.Error("a different service URL should get a freshly signed JWT")
	}
}

func TestServiceAccountJWTAccessCredentials_BadKey(t *testing.T) {
	tests := []struct {
		name    string
		jsonKey string
	}{
		{name: "not json", jsonKey: "{not json"},
		{name: "missing email", jsonKey: `{"type":"service_account","private_key":"x"}`},
		{name: "missing key", jsonKey: `{"type":"service_account","client_email":"a@b.c"}`},
		{name: "bad pem", jsonKey: `{"type":"service_account","client_email":"a@b.c","private_key":"not pem"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := ServiceAccountJWTAccessCredentials([]byte(tt.jsonKey), time.Hour)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if cred == nil || constructionErr(cred) == nil {
				t.Error("factory should return an invalid handle, not nil")
			}
		})
	}
}

// Signed JWTs must verify against the service account's public key published
// as a JWKS, the way a server-side consumer would check them.
func TestServiceAccountJWT_VerifiesAgainstJWKS(t *testing.T) {
	jsonKey, privateKey := testutil.ServiceAccountKeyJSON(t)
	jwksServer := testutil.CreateJWKSServer(t, &privateKey.PublicKey)

	cred, err := ServiceAccountJWTAccessCredentials(jsonKey, time.Hour)
	if err != nil {
		t.Fatalf("ServiceAccountJWTAccessCredentials failed: %v", err)
	}

	raw := applyJWT(t, cred, "https://service.example.com/pkg.Service")

	jwks, err := keyfunc.Get(jwksServer.URL, keyfunc.Options{})
	if err != nil {
		t.Fatalf("failed to load JWKS: %v", err)
	}
	defer jwks.EndBackground()

	parsed, err := jwt.Parse(raw, jwks.Keyfunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("JWT verification failed: %v", err)
	}
	if !parsed.Valid {
		t.Error("JWT should verify against the JWKS key")
	}
	if kid := parsed.Header["kid"]; kid != "test-key-1" {
		t.Errorf("unexpected kid header: %v", kid)
	}
}
