package creds

import (
	"errors"

	"github.com/AmmannChristian/go-rpccreds/internal/tokenprov"
)

var (
	// ErrConfiguration marks invalid options detected at construction time.
	// Factories report it immediately and return an invalid credential handle;
	// it is never retried.
	ErrConfiguration = errors.New("creds: invalid credential configuration")

	// ErrIncompatibleCredentials is returned by CompositeCredentials when both
	// operands carry transport security. A composite holds at most one
	// transport-security part.
	ErrIncompatibleCredentials = errors.New("creds: incompatible credentials")

	// ErrNoDefaultCredentials is returned by GoogleDefaultCredentials when no
	// credential source could be resolved from the environment.
	ErrNoDefaultCredentials = errors.New("creds: no default credentials available")

	// ErrAuthentication marks a call-time failure to apply credentials. It
	// fails only the individual call, never the channel.
	ErrAuthentication = errors.New("creds: authentication failed")

	// ErrTokenFetch marks a failed token fetch or exchange during ApplyToCall.
	// Retrying is left to the caller's retry policy.
	ErrTokenFetch = tokenprov.ErrFetch
)
