// Package envcfg resolves the environment variables consulted by credential
// construction and default-credential resolution.
package envcfg

import (
	"github.com/joeshaw/envdecode"
)

// Config holds the environment knobs the credential layer consults. All fields
// are optional; zero values mean "use the built-in default".
type Config struct {
	// SSLRootsFile points to an alternate PEM bundle of root certificates.
	// Consulted only when SslCredentialsOptions.RootCerts is empty.
	// ENV: GRPC_DEFAULT_SSL_ROOTS_FILE_PATH
	SSLRootsFile string `env:"GRPC_DEFAULT_SSL_ROOTS_FILE_PATH"`

	// ApplicationCredentials points to a JSON credential file (service-account
	// key or authorized-user refresh token) used by default-credential
	// resolution. ENV: GOOGLE_APPLICATION_CREDENTIALS
	ApplicationCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// MetadataHost is the compute metadata endpoint host.
	// ENV: GCE_METADATA_HOST
	MetadataHost string `env:"GCE_METADATA_HOST,default=metadata.google.internal"`
}

// Load decodes the configuration from the process environment.
func Load() Config {
	var cfg Config
	// All fields carry defaults or are optional; decode errors only mean
	// nothing was set, which is a valid configuration.
	_ = envdecode.Decode(&cfg)
	if cfg.MetadataHost == "" {
		cfg.MetadataHost = "metadata.google.internal"
	}
	return cfg
}
