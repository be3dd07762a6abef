package jwtware

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformAuthorizationChecks(t *testing.T) {
	mentor := MapClaims{MapClaims: jwt.MapClaims{"sub": "acc-1", "role": "mentor"}}

	tests := []struct {
		name    string
		cfg     Config
		allowed bool
	}{
		{"no roles configured", Config{}, true},
		{"role listed", Config{AllowedRoles: []string{"admin", "mentor"}}, true},
		{"role not listed", Config{AllowedRoles: []string{"admin"}}, false},
		{
			name: "checker wins over the list",
			cfg: Config{
				AllowedRoles: []string{"admin"},
				RoleChecker:  func(AuthClaims, []string) bool { return true },
			},
			allowed: true,
		},
		{
			name: "checker can reject",
			cfg: Config{
				RoleChecker: func(AuthClaims, []string) bool { return false },
			},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := performAuthorizationChecks(mentor, tt.cfg)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrRoleNotAllowed)
			assert.Contains(t, err.Error(), "mentor")
		})
	}
}

func TestSigningKeyFuncChecksAlgorithm(t *testing.T) {
	keyFunc := signingKeyFunc(SigningKey{JWTAlg: jwt.SigningMethodHS256.Alg(), Key: []byte("k")})

	key, err := keyFunc(&jwt.Token{Header: map[string]any{"alg": "HS256"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), key)

	_, err = keyFunc(&jwt.Token{Header: map[string]any{"alg": "HS512"}})
	assert.Error(t, err)

	_, err = keyFunc(&jwt.Token{Header: map[string]any{}})
	assert.Error(t, err)
}

func TestRunValidationListenersStopsAtFirstError(t *testing.T) {
	var calls int
	stop := errors.New("account locked")

	cfg := Config{
		ValidationListeners: []ValidationListener{
			nil,
			func(*fiber.Ctx, AuthClaims) error { calls++; return nil },
			func(*fiber.Ctx, AuthClaims) error { calls++; return stop },
			func(*fiber.Ctx, AuthClaims) error { calls++; return nil },
		},
	}

	err := cfg.runValidationListeners(nil, MapClaims{})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestKeyfuncOptionsRefreshPolicy(t *testing.T) {
	opts := keyfuncOptions(nil)
	require.NotNil(t, opts.RefreshErrorHandler)
	assert.NotPanics(t, func() { opts.RefreshErrorHandler(errors.New("refresh failed")) })
	assert.Equal(t, time.Hour, opts.RefreshInterval)
	assert.True(t, opts.RefreshUnknownKID)
}
