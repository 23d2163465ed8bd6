package courseai

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// FederatedClaims are the verified claims extracted from a federated
// identity token. Claims are only ever produced for tokens that passed
// signature, issuer, audience, and expiry checks.
type FederatedClaims struct {
	Email       string
	DisplayName string
	AvatarURL   string
}

// ClaimsVerifier validates a raw federated identity token against its
// issuer and extracts the verified claims. Any validation failure yields
// ErrVerificationFailed with no partial claims.
type ClaimsVerifier interface {
	Verify(ctx context.Context, rawToken string) (*FederatedClaims, error)
}

// GoogleVerifier verifies Google-issued ID tokens for a single OAuth client
// (the audience). Verification is network-bound: it fetches Google's signing
// keys, so it always runs before any persistence write begins.
type GoogleVerifier struct {
	// Audience is the OAuth client id the token must be issued for.
	Audience string
}

// NewGoogleVerifier returns a verifier for tokens issued to clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{Audience: clientID}
}

// Verify validates rawToken and extracts email, display name, and avatar.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*FederatedClaims, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrVerificationFailed)
	}
	payload, err := idtoken.Validate(ctx, rawToken, v.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token carries no email claim", ErrVerificationFailed)
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)
	return &FederatedClaims{
		Email:       NormalizeEmail(email),
		DisplayName: name,
		AvatarURL:   picture,
	}, nil
}
