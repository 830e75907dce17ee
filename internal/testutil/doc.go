// Package testutil provides test helpers for go-rpccreds packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token-exchange and compute metadata endpoints, PEM material and service-account
// key files generated in memory, and a bufconn-backed gRPC health server that records the
// metadata attached to incoming calls.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockTokenServer and StaticJSONResponse: stub token-exchange endpoints and capture requests
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - GenerateCACertPEM / GenerateCertAndKeyPEM: in-memory CA and leaf certificates
//   - ServiceAccountKeyJSON / RefreshTokenJSON: credential files for factory tests
//   - NewMockMetadataServer: compute metadata endpoint for default-credential tests
//   - StartHealthServer: bufconn gRPC server capturing per-call metadata
//
// These helpers are designed for tests and may mutate http.DefaultClient/Transport; they restore previous values via tb.Cleanup.
package testutil
