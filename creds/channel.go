package creds

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Channel is a logical connection to a target endpoint. Every call made on it
// has the owning credential applied automatically.
type Channel struct {
	target string
	conn   *grpc.ClientConn
}

// Conn exposes the underlying gRPC connection for building service stubs.
func (ch *Channel) Conn() *grpc.ClientConn {
	return ch.conn
}

// Target returns the endpoint the channel was built for.
func (ch *Channel) Target() string {
	return ch.target
}

// Close tears the channel down.
func (ch *Channel) Close() error {
	return ch.conn.Close()
}

// ChannelOption configures channel construction.
type ChannelOption func(*channelConfig)

type channelConfig struct {
	dialOpts []grpc.DialOption
}

// WithDialOptions adds custom gRPC dial options. They are applied after the
// options derived from the credential.
func WithDialOptions(opts ...grpc.DialOption) ChannelOption {
	return func(cfg *channelConfig) {
		cfg.dialOpts = append(cfg.dialOpts, opts...)
	}
}

// ChannelFactory builds channels from credentials, carrying a base set of
// options applied to every channel it creates.
type ChannelFactory struct {
	baseOpts []ChannelOption
}

// NewChannelFactory creates a factory whose base options apply to every
// channel it builds.
func NewChannelFactory(opts ...ChannelOption) *ChannelFactory {
	return &ChannelFactory{baseOpts: opts}
}

// CreateChannel builds a channel to target carrying credential.
//
// A nil credential, or InsecureCredentials, yields a plaintext channel. A
// credential with a transport-security part yields an encrypted channel. An
// invalid credential handle, or one with call parts but no transport part,
// still yields a usable channel handle, but one on which every call fails
// immediately with an authentication error; failures are deferred to call
// time, never silently dropped.
func (f *ChannelFactory) CreateChannel(target string, credential Credential, opts ...ChannelOption) (*Channel, error) {
	if target == "" {
		return nil, errors.New("creds: channel target is required")
	}

	var cfg channelConfig
	for _, opt := range f.baseOpts {
		opt(&cfg)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var dialOpts []grpc.DialOption

	effective := credential
	switch {
	case credential == nil:
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case constructionErr(credential) != nil:
		// Lame channel: the transport is never reached because every call
		// fails in the interceptor first.
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	default:
		switch transport := transportPart(credential); {
		case transport == nil:
			effective = &invalidCredential{
				err: errors.New("creds: credential provides no transport part; compose with SslCredentials or InsecureCredentials"),
			}
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		case secureView(transport) != nil:
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(secureView(transport).tlsConfig())))
		default:
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		}
	}

	if effective != nil {
		dialOpts = append(dialOpts,
			grpc.WithUnaryInterceptor(unaryApplyInterceptor(target, effective)),
			grpc.WithStreamInterceptor(streamApplyInterceptor(target, effective)),
		)
	}

	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("creds: failed to create channel: %w", err)
	}

	return &Channel{target: target, conn: conn}, nil
}

// CreateChannel builds a channel using a default factory. See
// ChannelFactory.CreateChannel.
func CreateChannel(target string, credential Credential, opts ...ChannelOption) (*Channel, error) {
	return NewChannelFactory().CreateChannel(target, credential, opts...)
}

// applyCredential runs ApplyToCall for one RPC and merges the collected
// metadata into the outgoing context. Failures surface as Unauthenticated,
// failing only the individual call.
func applyCredential(ctx context.Context, target, fullMethod string, credential Credential) (context.Context, error) {
	call := NewCall(serviceURLFromMethod(target, fullMethod))
	if err := credential.ApplyToCall(ctx, call); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	if md := call.Metadata(); len(md) > 0 {
		if existing, ok := metadata.FromOutgoingContext(ctx); ok {
			md = metadata.Join(existing, md)
		}
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	return ctx, nil
}

func unaryApplyInterceptor(target string, credential Credential) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := applyCredential(ctx, target, method, credential)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func streamApplyInterceptor(target string, credential Credential) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := applyCredential(ctx, target, method, credential)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}
