package jwtware

import (
	"github.com/golang-jwt/jwt/v5"
)

// MapClaims exposes generic JWT claims as AuthClaims. It is what the
// middleware stores when no TokenValidator is configured.
type MapClaims struct {
	jwt.MapClaims
}

func (m MapClaims) Subject() string {
	sub, _ := m.MapClaims.GetSubject()
	return sub
}

func (m MapClaims) UserID() string {
	if uid, ok := m.MapClaims["uid"].(string); ok && uid != "" {
		return uid
	}
	return m.Subject()
}

func (m MapClaims) Role() string {
	role, _ := m.MapClaims["role"].(string)
	return role
}

func (m MapClaims) HasRole(role string) bool {
	r := m.Role()
	return r != "" && r == role
}

// KeyfuncValidator validates tokens with keyFunc and returns MapClaims
func KeyfuncValidator(keyFunc jwt.Keyfunc) TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (AuthClaims, error) {
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, ErrJWTMissingOrMalformed
		}
		return MapClaims{MapClaims: claims}, nil
	})
}
