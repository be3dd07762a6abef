package auth_test

import (
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
)

func fastArgon2() *argon2.Config {
	cfg := argon2.DefaultConfig()
	cfg.MemoryCost = 8 * 1024
	cfg.TimeCost = 1
	cfg.Parallelism = 1
	return &cfg
}

func TestBcryptHasher(t *testing.T) {
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid password", password: "securePassword123!"},
		{name: "empty password", password: "", wantErr: auth.ErrNoEmptyString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.HashPassword(tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, "$2"))
			assert.NotContains(t, hash, tt.password)
			assert.NoError(t, hasher.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	_, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.HashPassword(strings.Repeat("x", 73))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, auth.HTTPStatus(err))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestBcryptHasherMismatch(t *testing.T) {
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := hasher.HashPassword("testPassword123!")
	require.NoError(t, err)

	err = hasher.ComparePasswordAndHash("wrongPassword", hash)
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)

	err = hasher.ComparePasswordAndHash("testPassword123!", "invalidhash")
	assert.Error(t, err)
	assert.NotEqual(t, auth.ErrMismatchedHashAndPassword, err)
}

func TestArgon2Hasher(t *testing.T) {
	hasher := auth.Argon2Hasher{Config: fastArgon2()}

	hash, err := hasher.HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2"))

	assert.NoError(t, hasher.ComparePasswordAndHash("correct horse battery", hash))
	assert.Equal(t, auth.ErrMismatchedHashAndPassword, hasher.ComparePasswordAndHash("wrong", hash))

	_, err = hasher.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestCompositeHasherVerifiesBothEncodings(t *testing.T) {
	bcryptHash, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.HashPassword("s3cret-pass")
	require.NoError(t, err)

	argonHash, err := auth.Argon2Hasher{Config: fastArgon2()}.HashPassword("s3cret-pass")
	require.NoError(t, err)

	composite := auth.CompositeHasher{Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost}}
	assert.NoError(t, composite.ComparePasswordAndHash("s3cret-pass", bcryptHash))
	assert.NoError(t, composite.ComparePasswordAndHash("s3cret-pass", argonHash))
	assert.Error(t, composite.ComparePasswordAndHash("other", argonHash))

	hash, err := composite.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
}

func TestNewPasswordHasher(t *testing.T) {
	assert.Equal(t, auth.CompositeHasher{Hasher: auth.Argon2Hasher{}}, auth.NewPasswordHasher("Argon2id"))
	assert.Equal(t, auth.CompositeHasher{Hasher: auth.BcryptHasher{}}, auth.NewPasswordHasher("bcrypt"))
	assert.Equal(t, auth.CompositeHasher{Hasher: auth.BcryptHasher{}}, auth.NewPasswordHasher(""))
}
