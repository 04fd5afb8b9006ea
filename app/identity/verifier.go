package identity

import (
	"context"
	"fmt"

	"github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/coreos/go-oidc"
	"github.com/mitchellh/mapstructure"
)

// Method is how the user signed in with the identity provider.
type Method string

const (
	MethodPhone     Method = "phone"
	MethodEmailLink Method = "email_link"
	MethodWallet    Method = "wallet"
)

// Claims are the parts of a verified ID token the studio uses.
type Claims struct {
	Subject       string `mapstructure:"sub"`
	Email         string `mapstructure:"email"`
	Phone         string `mapstructure:"phone_number"`
	WalletAddress string `mapstructure:"wallet_address"`
	Method        Method `mapstructure:"sign_in_method"`
}

// Verifier checks identity provider ID tokens.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (Claims, error)
}

// OIDCVerifier verifies ID tokens against the provider's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuerURL. Tokens must be issued for clientID.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("cannot discover identity provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID:             clientID,
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (Claims, error) {
	var c Claims
	idt, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return c, errors.AuthStale("identity token rejected: %v", err)
	}
	raw := map[string]any{}
	if err := idt.Claims(&raw); err != nil {
		return c, errors.AuthStale("identity token claims unreadable: %v", err)
	}
	if err := mapstructure.WeakDecode(raw, &c); err != nil {
		return c, errors.AuthStale("identity token claims unreadable: %v", err)
	}
	c.Subject = idt.Subject
	c.Method = methodOf(c)
	return c, nil
}

// methodOf returns the explicit sign-in method, or infers it from the identifiers present.
func methodOf(c Claims) Method {
	switch {
	case c.Method == MethodPhone || c.Method == MethodEmailLink || c.Method == MethodWallet:
		return c.Method
	case c.WalletAddress != "":
		return MethodWallet
	case c.Phone != "":
		return MethodPhone
	default:
		return MethodEmailLink
	}
}
