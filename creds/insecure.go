package creds

import "context"

// insecureCredential establishes an unencrypted, unauthenticated transport
// and attaches no call metadata.
type insecureCredential struct{}

// InsecureCredentials returns credentials for an unencrypted, unauthenticated
// channel. Composing them with call credentials yields a connectable
// plaintext composite.
func InsecureCredentials() Credential {
	return &insecureCredential{}
}

// ApplyToCall succeeds without attaching anything.
func (c *insecureCredential) ApplyToCall(ctx context.Context, call *Call) error {
	return nil
}

func (c *insecureCredential) credential() {}
