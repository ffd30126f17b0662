package credential

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/status"
)

// Verifier knows how to retrieve a principal from a platform identity token
type Verifier interface {
	Principal(ctx context.Context, rawIDToken string) (string, error)
}

// OIDCVerifier verifies CI job ID tokens issued by the platform's OIDC provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for tokens issued to audience
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, status.ErrAuth.Wrap(errors.New("oidc provider").Wrap(err))
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// Principal verifies the signature, issuer, audience and expiry of a raw ID token,
// and returns its subject.
func (v *OIDCVerifier) Principal(ctx context.Context, rawIDToken string) (string, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", status.ErrAuth.Wrap(err)
	}
	return token.Subject, nil
}
