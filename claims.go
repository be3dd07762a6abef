package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	DisplayName() string
	Email() string
	AvatarURL() string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID        string         `json:"uid,omitempty"`
	UserRole   string         `json:"role,omitempty"`
	UserName   string         `json:"name,omitempty"`
	UserEmail  string         `json:"email,omitempty"`
	UserAvatar string         `json:"avatar,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role snapshot taken when the token was minted
func (c *JWTClaims) Role() string {
	return c.UserRole
}

func (c *JWTClaims) DisplayName() string {
	return c.UserName
}

func (c *JWTClaims) Email() string {
	return c.UserEmail
}

func (c *JWTClaims) AvatarURL() string {
	return c.UserAvatar
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// HasRole checks if the token carries the given role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole != "" && c.UserRole == role
}

// HasAnyRole checks if the token role is one of roles
func (c *JWTClaims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Clone returns a deep copy safe to mutate
func (c *JWTClaims) Clone() *JWTClaims {
	if c == nil {
		return nil
	}

	out := *c
	if c.RegisteredClaims.Audience != nil {
		out.RegisteredClaims.Audience = append(jwt.ClaimStrings(nil), c.RegisteredClaims.Audience...)
	}

	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}

	return &out
}
