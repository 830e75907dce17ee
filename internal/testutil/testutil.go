package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// MockTokenServer simulates an OAuth2 token-exchange endpoint without real
// sockets. It records requests and serves responses through a custom
// RoundTripper installed as the process default transport for the test.
type MockTokenServer struct {
	URL string
	Ctx context.Context

	mu       sync.Mutex
	requests []*http.Request
}

// NewMockTokenServer builds a mock token endpoint backed by an in-memory
// RoundTripper. If handler is nil, it returns a default successful token
// response.
func NewMockTokenServer(tb testing.TB, handler RoundTripFunc) *MockTokenServer {
	tb.Helper()

	server := &MockTokenServer{
		URL: "https://mock-oauth.example.com",
	}

	if handler == nil {
		handler = StaticJSONResponse(`{
			"access_token": "mock-access-token",
			"token_type": "Bearer",
			"expires_in": 3600
		}`)
	}

	rt := RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		server.mu.Lock()
		server.requests = append(server.requests, req)
		server.mu.Unlock()
		return handler(req)
	})

	prevTransport := http.DefaultTransport
	prevClient := http.DefaultClient
	http.DefaultTransport = rt
	http.DefaultClient = &http.Client{Transport: rt}
	tb.Cleanup(func() {
		http.DefaultTransport = prevTransport
		http.DefaultClient = prevClient
	})

	server.Ctx = context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: rt,
	})

	return server
}

// Requests returns a snapshot of the requests seen so far.
func (m *MockTokenServer) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]*http.Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// RequestCount returns how many requests the endpoint has seen.
func (m *MockTokenServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// ErrorJSONResponse returns a RoundTripper that always responds with the
// given status code and JSON body.
func ErrorJSONResponse(statusCode int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: statusCode,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// GenerateCACertPEM returns a self-signed CA certificate in PEM form.
func GenerateCACertPEM(tb testing.TB) []byte {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// GenerateCertAndKeyPEM returns a self-signed certificate and its private key
// in PEM form, suitable for client identity options.
func GenerateCertAndKeyPEM(tb testing.TB) (certPEM, keyPEM []byte) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "test-cert"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM
}

// ServiceAccountKeyJSON returns a service-account key file with a freshly
// generated RSA key, plus the key itself for verifying signed JWTs.
func ServiceAccountKeyJSON(tb testing.TB) ([]byte, *rsa.PrivateKey) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate service account key: %v", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	key := map[string]string{
		"type":           "service_account",
		"client_email":   "test-account@example.iam.gserviceaccount.com",
		"private_key":    string(keyPEM),
		"private_key_id": "test-key-1",
	}

	jsonKey, err := json.Marshal(key)
	if err != nil {
		tb.Fatalf("failed to marshal service account key: %v", err)
	}
	return jsonKey, privateKey
}

// RefreshTokenJSON returns a well-formed authorized-user credential file.
func RefreshTokenJSON() []byte {
	return []byte(`{
		"type": "authorized_user",
		"client_id": "test-client-id.apps.googleusercontent.com",
		"client_secret": "test-client-secret",
		"refresh_token": "test-refresh-token"
	}`)
}

// NewMockMetadataServer starts a compute metadata endpoint serving the given
// access token, and returns its host for use with GCE_METADATA_HOST.
func NewMockMetadataServer(tb testing.TB, accessToken string) string {
	tb.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Metadata-Flavor", "Google")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/computeMetadata/v1/instance/service-accounts/default/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			http.Error(w, "missing Metadata-Flavor header", http.StatusForbidden)
			return
		}
		w.Header().Set("Metadata-Flavor", "Google")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"expires_in":3600,"token_type":"Bearer"}`, accessToken)
	})

	server := NewLocalHTTPServer(tb, mux)
	tb.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://")
}

// CreateJWKSServer creates a mock JWKS server with proper RSA public key encoding.
// This is used to verify minted JWTs in integration tests.
func CreateJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	nBytes := publicKey.N.Bytes()
	eBytes := big.NewInt(int64(publicKey.E)).Bytes()

	jwks := map[string]interface{}{
		"keys": []map[string]interface{}{
			{
				"kty": "RSA",
				"kid": "test-key-1",
				"use": "sig",
				"alg": "RS256",
				"n":   encodeBase64URL(nBytes),
				"e":   encodeBase64URL(eBytes),
			},
		},
	}

	body, err := json.Marshal(jwks)
	if err != nil {
		tb.Fatalf("failed to marshal JWKS: %v", err)
	}

	server := NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	tb.Cleanup(server.Close)

	return server
}

// encodeBase64URL encodes bytes to base64url (without padding) as required by JWK spec.
func encodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// HealthServer is an in-memory gRPC health server that records the incoming
// metadata of every call, for asserting what a credential attached.
type HealthServer struct {
	listener *bufconn.Listener
	server   *grpc.Server

	mu       sync.Mutex
	captured []metadata.MD
}

// StartHealthServer runs a bufconn-backed gRPC health service.
func StartHealthServer(tb testing.TB) *HealthServer {
	tb.Helper()

	s := &HealthServer{
		listener: bufconn.Listen(1024 * 1024),
	}

	s.server = grpc.NewServer(grpc.UnaryInterceptor(
		func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			if md, ok := metadata.FromIncomingContext(ctx); ok {
				s.mu.Lock()
				s.captured = append(s.captured, md)
				s.mu.Unlock()
			}
			return handler(ctx, req)
		},
	))
	grpc_health_v1.RegisterHealthServer(s.server, health.NewServer())

	go func() {
		_ = s.server.Serve(s.listener)
	}()
	tb.Cleanup(s.server.Stop)

	return s
}

// DialOption routes client connections to the in-memory listener.
func (s *HealthServer) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	})
}

// CapturedMetadata returns the incoming metadata of every call seen so far.
func (s *HealthServer) CapturedMetadata() []metadata.MD {
	s.mu.Lock()
	defer s.mu.Unlock()
	captured := make([]metadata.MD, len(s.captured))
	copy(captured, s.captured)
	return captured
}
