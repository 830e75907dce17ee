package creds

import (
	"context"
	"fmt"
)

// compositeCredential combines at most one transport part (SSL or insecure)
// with an ordered sequence of call credentials. Call parts are applied in
// composition order; all must succeed for the composite to succeed.
type compositeCredential struct {
	transport Credential
	callParts []Credential
}

// CompositeCredentials combines two credentials objects into a composite.
//
// At most one operand may carry a transport part (secure or plaintext);
// combining two fails with ErrIncompatibleCredentials. Composites are
// flattened: composing with an existing composite splices its call parts,
// preserving relative order, with creds1's parts before creds2's.
func CompositeCredentials(creds1, creds2 Credential) (Credential, error) {
	if creds1 == nil || creds2 == nil {
		return invalid(fmt.Errorf("cannot compose a nil credential"))
	}
	if err := constructionErr(creds1); err != nil {
		return &invalidCredential{err: err}, err
	}
	if err := constructionErr(creds2); err != nil {
		return &invalidCredential{err: err}, err
	}

	t1, t2 := transportPart(creds1), transportPart(creds2)
	if t1 != nil && t2 != nil {
		err := fmt.Errorf("%w: %s and %s both provide transport", ErrIncompatibleCredentials, kindOf(creds1), kindOf(creds2))
		return &invalidCredential{err: err}, err
	}

	transport := t1
	if transport == nil {
		transport = t2
	}

	var parts []Credential
	parts = append(parts, callPartsOf(creds1)...)
	parts = append(parts, callPartsOf(creds2)...)

	return &compositeCredential{transport: transport, callParts: parts}, nil
}

// callPartsOf flattens a credential into its ordered call parts. Transport
// parts contribute none.
func callPartsOf(c Credential) []Credential {
	switch c := c.(type) {
	case *compositeCredential:
		return c.callParts
	case *sslCredential, *insecureCredential:
		return nil
	default:
		return []Credential{c}
	}
}

// ApplyToCall runs the transport part (a no-op), then every call part in
// composition order, stopping at the first failure.
func (c *compositeCredential) ApplyToCall(ctx context.Context, call *Call) error {
	if c.transport != nil {
		if err := c.transport.ApplyToCall(ctx, call); err != nil {
			return fmt.Errorf("creds: composite %s part: %w", kindOf(c.transport), err)
		}
	}
	for i, part := range c.callParts {
		if err := part.ApplyToCall(ctx, call); err != nil {
			return fmt.Errorf("creds: composite %s part (position %d): %w", kindOf(part), i, err)
		}
	}
	return nil
}

func (c *compositeCredential) credential() {}
