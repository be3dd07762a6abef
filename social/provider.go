package social

import (
	"context"
)

// IDTokenVerifier validates an identity token issued by an external
// provider and returns the profile it asserts.
type IDTokenVerifier interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// VerifyIDToken checks the token signature, expiry and audience.
	VerifyIDToken(ctx context.Context, idToken string) (*SocialProfile, error)
}

// SocialProfile represents normalized user information from a social provider.
type SocialProfile struct {
	ProviderUserID string
	Provider       string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
	Raw            map[string]any
}
