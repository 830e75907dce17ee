// Package creds provides a pluggable client-authentication abstraction for
// gRPC channels: credentials that configure transport security, credentials
// that attach per-call authentication metadata, and composition of the two.
//
// A credential encapsulates the state a client needs to authenticate with a
// server. Transport-security credentials (SSL) decide how the channel is
// encrypted; call credentials (JWT access, refresh token, access token, IAM,
// OAuth2 client credentials) attach bearer tokens or fixed metadata entries
// to each outgoing RPC. CompositeCredentials combines one transport part with
// any number of call parts, and CreateChannel turns the result into a live
// channel that applies the composite to every call.
//
// # Quick Start
//
//	ssl, err := creds.SslCredentials(creds.SslCredentialsOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	iam, err := creds.GoogleIAMCredentials("token", "selector")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	combined, err := creds.CompositeCredentials(ssl, iam)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ch, err := creds.CreateChannel("service.example.com:443", combined)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	client := pb.NewYourServiceClient(ch.Conn())
//
// # Failure Model
//
// Factories validate options eagerly but never return a nil handle: on
// failure the handle is invalid, and a channel built from it is usable while
// every call on it fails fast with an authentication error. Call-time
// failures (an unreachable token endpoint, an expired exchange) fail only the
// individual call, never the channel or concurrent calls.
//
// # Concurrency
//
// Credentials are immutable after construction apart from internal token
// caches, and may be shared freely. A credential observing an expired token
// under concurrent calls performs exactly one refresh; the other callers wait
// for it, and a caller whose context is cancelled while waiting unblocks with
// the cancellation error.
package creds
