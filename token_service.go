package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService mints and validates session tokens
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        Clock
}

// NewTokenService creates a new TokenService instance, tokenExpiration is
// in hours
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        time.Duration(tokenExpiration) * time.Hour,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock sets the time source used for iat/exp and for validation
func (ts *TokenServiceImpl) WithClock(c Clock) *TokenServiceImpl {
	ts.now = normalizeClock(c)
	return ts
}

// TTL returns how long minted tokens live
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Generate creates a JWT carrying the identity role snapshot
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	return ts.SignClaims(ts.newClaims(identity))
}

func (ts *TokenServiceImpl) newClaims(identity Identity) *JWTClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   ts.issuer,
			Subject:  identity.ID(),
			Audience: aud,
		},
		UID:        identity.ID(),
		UserRole:   identity.Role(),
		UserName:   identity.DisplayName(),
		UserEmail:  identity.Email(),
		UserAvatar: identity.AvatarURL(),
	}

	ts.stamp(claims)

	return claims
}

// stamp sets fresh iat/exp and a new token id
func (ts *TokenServiceImpl) stamp(claims *JWTClaims) {
	now := ts.now()
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.ttl))
	claims.RegisteredClaims.ID = ""
	ensureTokenID(&claims.RegisteredClaims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		// the parser only checks the first audience
		if !hasAudiences(claims.RegisteredClaims.Audience, ts.audience) {
			return nil, ErrTokenMalformed
		}
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims != nil && claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

func hasAudiences(got jwt.ClaimStrings, want jwt.ClaimStrings) bool {
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
