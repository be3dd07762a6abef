// Package oidc verifies ID tokens from any OpenID Connect issuer that
// publishes a JWKS document, Auth0 tenants included.
package oidc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/social"
)

const DefaultName = "oidc"

// Config holds the issuer settings.
type Config struct {
	// Name is the provider key used in routes, "auth0" for example
	Name string

	// Domain is the tenant domain, e.g. "example.us.auth0.com".
	// Ignored when Issuer is set.
	Domain string

	// Issuer overrides the default issuer URL "https://{Domain}/"
	Issuer string

	// ClientID is the expected audience
	ClientID string

	// JWKSURL defaults to "{Issuer}.well-known/jwks.json"
	JWKSURL string

	// RefreshInterval for the cached key set. Default: 1 hour.
	RefreshInterval time.Duration

	// ValidMethods default to RS256 and ES256
	ValidMethods []string

	// KeyFunc skips the JWKS fetch when set
	KeyFunc jwt.Keyfunc

	Clock auth.Clock
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Nickname      string `json:"nickname"`
	Picture       string `json:"picture"`
}

// Provider implements social.IDTokenVerifier
type Provider struct {
	name    string
	issuer  string
	config  Config
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
	now     auth.Clock
}

var _ social.IDTokenVerifier = (*Provider)(nil)

// New resolves the issuer and, unless KeyFunc is given, fetches the
// issuer key set.
func New(cfg Config) (*Provider, error) {
	issuer := cfg.issuerURL()
	if issuer == "" {
		return nil, fmt.Errorf("oidc: issuer or domain is required")
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc: invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme == "" || issuerURL.Host == "" {
		return nil, fmt.Errorf("oidc: invalid issuer URL: %s", issuer)
	}

	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("oidc: client id is required")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultName
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	p := &Provider{
		name:    name,
		issuer:  issuer,
		config:  cfg,
		keyFunc: cfg.KeyFunc,
		now:     now,
	}

	if p.keyFunc != nil {
		return p, nil
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + ".well-known/jwks.json"
	}

	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("oidc: failed to load key set: %w", err)
	}

	p.jwks = jwks
	p.keyFunc = jwks.Keyfunc
	return p, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Issuer returns the normalized issuer URL
func (p *Provider) Issuer() string {
	return p.issuer
}

// Close stops the background key refresh
func (p *Provider) Close() {
	if p.jwks != nil {
		p.jwks.EndBackground()
	}
}

// VerifyIDToken checks signature, issuer, audience and expiry.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (*social.SocialProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	methods := p.config.ValidMethods
	if len(methods) == 0 {
		methods = []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}
	}

	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, p.keyFunc,
		jwt.WithValidMethods(methods),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.config.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		description := "invalid token"
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			description = "token expired"
		}
		return nil, &social.ProviderError{
			Provider:    p.name,
			Operation:   "verify",
			Description: description,
			Err:         err,
		}
	}

	if claims.Subject == "" {
		return nil, &social.ProviderError{
			Provider:    p.name,
			Operation:   "verify",
			Description: "missing subject",
		}
	}

	name := claims.Name
	if name == "" {
		name = claims.Nickname
	}

	return &social.SocialProfile{
		ProviderUserID: claims.Subject,
		Provider:       p.name,
		Email:          strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified:  claims.EmailVerified,
		Name:           name,
		AvatarURL:      claims.Picture,
		Raw: map[string]any{
			"issuer":   p.issuer,
			"subject":  claims.Subject,
			"audience": []string(claims.Audience),
		},
	}, nil
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" || strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}
