package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claimsSnapshot records the claims that only the issuer may set. The role
// belongs here too: it always comes from the account store, never from a
// decorator.
type claimsSnapshot struct {
	subject     string
	issuer      string
	uid         string
	role        string
	audience    []string
	issuedAt    time.Time
	hasIssuedAt bool
	expiresAt   time.Time
	hasExpires  bool
}

func captureClaims(claims *JWTClaims) claimsSnapshot {
	var audienceCopy []string
	if len(claims.RegisteredClaims.Audience) > 0 {
		audienceCopy = append(audienceCopy, claims.RegisteredClaims.Audience...)
	}

	snap := claimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.RegisteredClaims.Issuer,
		uid:      claims.UID,
		role:     claims.UserRole,
		audience: audienceCopy,
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		snap.issuedAt = claims.RegisteredClaims.IssuedAt.Time
		snap.hasIssuedAt = true
	}

	if claims.RegisteredClaims.ExpiresAt != nil {
		snap.expiresAt = claims.RegisteredClaims.ExpiresAt.Time
		snap.hasExpires = true
	}

	return snap
}

// validate rejects any change to the protected claims
func (snap claimsSnapshot) validate(claims *JWTClaims) error {
	if err := snap.validateIdentity(claims); err != nil {
		return err
	}

	if claims.UserRole != snap.role {
		return protectedClaimViolation("role")
	}

	if err := compareNumericDate(claims.RegisteredClaims.IssuedAt, snap.issuedAt, snap.hasIssuedAt, "iat"); err != nil {
		return err
	}

	return compareNumericDate(claims.RegisteredClaims.ExpiresAt, snap.expiresAt, snap.hasExpires, "exp")
}

// validateIdentity only checks who the token is about and who issued it.
// Session updates use it since they re-stamp iat/exp and may change role.
func (snap claimsSnapshot) validateIdentity(claims *JWTClaims) error {
	if claims.RegisteredClaims.Subject != snap.subject {
		return protectedClaimViolation("sub")
	}

	if claims.RegisteredClaims.Issuer != snap.issuer {
		return protectedClaimViolation("iss")
	}

	if claims.UID != snap.uid {
		return protectedClaimViolation("uid")
	}

	if !audienceEqual(claims.RegisteredClaims.Audience, snap.audience) {
		return protectedClaimViolation("aud")
	}

	return nil
}

func compareNumericDate(date *jwt.NumericDate, expected time.Time, expectedSet bool, field string) error {
	if !expectedSet {
		if date != nil {
			return protectedClaimViolation(field)
		}
		return nil
	}

	if date == nil || !date.Time.Equal(expected) {
		return protectedClaimViolation(field)
	}

	return nil
}

func audienceEqual(a jwt.ClaimStrings, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func protectedClaimViolation(field string) error {
	clone := ErrProtectedClaimMutation.Clone()
	if clone == nil {
		return ErrProtectedClaimMutation
	}
	clone.Message = fmt.Sprintf("protected claim mutated: %s", field)
	clone.Source = ErrProtectedClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
