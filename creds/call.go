package creds

import (
	"strings"

	"google.golang.org/grpc/metadata"
)

// Call is the per-RPC view a credential mutates. Channel interceptors build
// one per outgoing RPC, run ApplyToCall on it, and merge the collected
// entries into the outgoing gRPC metadata.
type Call struct {
	serviceURL string
	md         metadata.MD
}

// NewCall builds a call view for the service identified by serviceURL.
func NewCall(serviceURL string) *Call {
	return &Call{
		serviceURL: serviceURL,
		md:         metadata.MD{},
	}
}

// ServiceURL identifies the service the RPC targets, e.g.
// "https://host:port/package.Service". Audience-bound credentials derive the
// token audience from it.
func (c *Call) ServiceURL() string {
	return c.serviceURL
}

// SetMetadata appends a metadata entry to the call. Keys are normalized to
// lower case per gRPC metadata semantics; repeated writers of the same key
// append rather than overwrite.
func (c *Call) SetMetadata(key, value string) {
	c.md.Append(strings.ToLower(key), value)
}

// Metadata returns the entries collected so far.
func (c *Call) Metadata() metadata.MD {
	return c.md
}

// serviceURLFromMethod derives the service URL for an RPC on target with the
// given full method name ("/package.Service/Method").
func serviceURLFromMethod(target, fullMethod string) string {
	service := fullMethod
	if i := strings.LastIndex(fullMethod, "/"); i > 0 {
		service = fullMethod[:i]
	}
	return "https://" + target + service
}
