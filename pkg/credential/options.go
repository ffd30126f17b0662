package credential

import (
	"github.com/oneconcern/monorel/pkg/secret"
	"go.uber.org/zap"
)

// DefaultTokenEnv is the pipeline variable holding the push token
const DefaultTokenEnv = "MONOREL_TOKEN"

// DefaultUsername is the user name presented to the remote along with the token.
// Most forges ignore it for token authentication.
const DefaultUsername = "oauth2"

// Option configures the broker
type Option func(*Broker)

// Logger for the broker
func Logger(l *zap.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.l = l
		}
	}
}

// RemoteName is the git remote to authenticate, defaults to "origin"
func RemoteName(remote string) Option {
	return func(b *Broker) {
		if remote != "" {
			b.remote = remote
		}
	}
}

// TokenEnv sets the environment variable holding the token
func TokenEnv(name string) Option {
	return func(b *Broker) {
		if name != "" {
			b.tokenEnv = name
		}
	}
}

// Username sets the user name used in the authenticated remote URL
func Username(name string) Option {
	return func(b *Broker) {
		if name != "" {
			b.username = name
		}
	}
}

// IdentityToken enables the verification of the CI job identity, with the
// raw ID token read from the given environment variable.
func IdentityToken(env string, verifier Verifier) Option {
	return func(b *Broker) {
		b.idTokenEnv = env
		b.verifier = verifier
	}
}

// SecretSource replaces the way secrets are read from the environment, e.g. for testing
func SecretSource(source func(string) (*secret.Buffer, error)) Option {
	return func(b *Broker) {
		if source != nil {
			b.source = source
		}
	}
}
