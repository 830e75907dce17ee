// Package grpcclient provides a fluent builder for authenticated gRPC channels on top of the
// credential factories in package creds.
//
// It defaults to TLS with platform roots to avoid accidental plaintext connections. Optional
// methods select an insecure transport, a custom CA or mTLS identity, and any number of call
// credentials (service-account JWT, refresh token, access token, IAM, OAuth2 client credentials),
// which are composed in the order they were added.
//
// # Quick Start
//
//	ch, err := grpcclient.NewBuilder().
//	    WithAddress("service.example.com:443").
//	    WithSSL("/path/to/ca.crt", "", "").
//	    WithServiceAccountJWT("/path/to/key.json", time.Hour).
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	client := pb.NewYourServiceClient(ch.Conn())
//
// # Transport Behavior
//
// TLS is the default, using platform roots. WithSSL allows supplying a custom root CA and an
// optional client cert/key pair for mTLS; cert and key must be provided together. WithInsecure
// selects a plaintext channel and cannot be combined with WithSSL.
package grpcclient
