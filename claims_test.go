package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-portal-auth"
)

func TestJWTClaimsUserID(t *testing.T) {
	claims := &auth.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}
	assert.Equal(t, "sub-1", claims.UserID())

	claims.UID = "uid-1"
	assert.Equal(t, "uid-1", claims.UserID())
	assert.Equal(t, "sub-1", claims.Subject())
}

func TestJWTClaimsHasRole(t *testing.T) {
	claims := &auth.JWTClaims{UserRole: "partner"}

	assert.True(t, claims.HasRole("partner"))
	assert.False(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole(""))
	assert.True(t, claims.HasAnyRole("admin", "partner"))
	assert.False(t, claims.HasAnyRole("admin", "mentor"))
	assert.False(t, claims.HasAnyRole())

	empty := &auth.JWTClaims{}
	assert.False(t, empty.HasRole(""))
}

func TestJWTClaimsTimes(t *testing.T) {
	claims := &auth.JWTClaims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))

	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))
}

func TestJWTClaimsClone(t *testing.T) {
	original := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "acc-1",
			Audience: jwt.ClaimStrings{"portal:web"},
		},
		UserRole: "user",
		Metadata: map[string]any{"tenant": "acme"},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.UserRole = "admin"
	clone.RegisteredClaims.Audience[0] = "other"
	clone.Metadata["tenant"] = "globex"

	assert.Equal(t, "user", original.UserRole)
	assert.Equal(t, jwt.ClaimStrings{"portal:web"}, original.RegisteredClaims.Audience)
	assert.Equal(t, "acme", original.Metadata["tenant"])

	var nilClaims *auth.JWTClaims
	assert.Nil(t, nilClaims.Clone())
}

func TestJWTClaimsProfile(t *testing.T) {
	claims := &auth.JWTClaims{
		UserName:   "Pat",
		UserEmail:  "pat@example.com",
		UserAvatar: "https://example.com/pat.png",
		Metadata:   map[string]any{"k": "v"},
	}

	var ac auth.AuthClaims = claims
	assert.Equal(t, "Pat", ac.DisplayName())
	assert.Equal(t, "pat@example.com", ac.Email())
	assert.Equal(t, "https://example.com/pat.png", ac.AvatarURL())
	assert.Equal(t, map[string]any{"k": "v"}, claims.ClaimsMetadata())
}
