package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// VerificationTokenTTL is how long a verification token stays valid
var VerificationTokenTTL = 24 * time.Hour

const verificationTokenBytes = 32

// GenerateVerificationToken returns a hex encoded random token
func GenerateVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewVerificationToken issues a token for identifier expiring ttl after now
func NewVerificationToken(identifier string, now time.Time, ttl time.Duration) (*VerificationToken, error) {
	token, err := GenerateVerificationToken()
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = VerificationTokenTTL
	}

	// stored timestamps are compared in SQL, keep them in one zone
	now = now.UTC()

	return &VerificationToken{
		Token:      token,
		Identifier: NormalizeEmail(identifier),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}
