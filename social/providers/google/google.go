package google

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/goliatone/go-portal-auth/social"
)

const ProviderName = "google"

// Config holds Google sign-in configuration.
type Config struct {
	// ClientID is the expected audience of the ID tokens
	ClientID string

	// Endpoint overrides the Google API base URL
	Endpoint string

	HTTPClient *http.Client
}

// Provider verifies Google ID tokens through the oauth2 tokeninfo API.
type Provider struct {
	config     Config
	httpClient *http.Client
}

var _ social.IDTokenVerifier = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) *Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// VerifyIDToken validates idToken and checks it was issued for ClientID.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (*social.SocialProfile, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.httpClient)}
	if p.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.config.Endpoint))
	}

	svc, err := oauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, &social.ProviderError{Provider: ProviderName, Operation: "client", Err: err}
	}

	info, err := svc.Tokeninfo().IdToken(idToken).Context(ctx).Do()
	if err != nil {
		return nil, &social.ProviderError{Provider: ProviderName, Operation: "tokeninfo", Err: err}
	}

	if p.config.ClientID == "" || info.Audience != p.config.ClientID {
		return nil, &social.ProviderError{
			Provider:    ProviderName,
			Operation:   "tokeninfo",
			Description: "audience mismatch",
		}
	}

	if info.UserId == "" {
		return nil, &social.ProviderError{
			Provider:    ProviderName,
			Operation:   "tokeninfo",
			Description: "missing user id",
		}
	}

	return &social.SocialProfile{
		ProviderUserID: info.UserId,
		Provider:       ProviderName,
		Email:          strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified:  info.VerifiedEmail,
		Raw: map[string]any{
			"audience":   info.Audience,
			"issued_to":  info.IssuedTo,
			"expires_in": info.ExpiresIn,
		},
	}, nil
}
