package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	botFrameworkIssuer = "https://api.botframework.com"
	botFrameworkJWKS   = "https://login.botframework.com/v1/.well-known/keys"
)

var errMissingToken = errors.New("missing bearer token")

// Authenticator verifies the bearer token the Bot Framework service sends
// with every activity.
type Authenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewAuthenticator fetches signing keys from the Bot Framework JWKS endpoint
// on demand. Tokens must be issued for appID.
func NewAuthenticator(ctx context.Context, appID string) *Authenticator {
	keys := oidc.NewRemoteKeySet(ctx, botFrameworkJWKS)
	return newAuthenticator(appID, keys, nil)
}

func newAuthenticator(appID string, keys oidc.KeySet, cfg *oidc.Config) *Authenticator {
	if cfg == nil {
		cfg = &oidc.Config{}
	}
	cfg.ClientID = appID
	return &Authenticator{verifier: oidc.NewVerifier(botFrameworkIssuer, keys, cfg)}
}

// Authenticate checks the Authorization header value. When the token names a
// service URL it must match the one in the activity.
func (a *Authenticator) Authenticate(ctx context.Context, authorization, serviceURL string) error {
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return errMissingToken
	}

	tok, err := a.verifier.Verify(ctx, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	var claims struct {
		ServiceURL string `json:"serviceurl"`
	}
	if err := tok.Claims(&claims); err != nil {
		return fmt.Errorf("decode claims: %w", err)
	}
	if claims.ServiceURL != "" && !sameServiceURL(claims.ServiceURL, serviceURL) {
		return fmt.Errorf("service url mismatch: token %q, activity %q", claims.ServiceURL, serviceURL)
	}
	return nil
}

func sameServiceURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
