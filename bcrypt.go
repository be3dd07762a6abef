package auth

import (
	"errors"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassword is returned when a password does not match
var ErrMismatchedHashAndPassword = errors.New("identity auth: password mismatch")

// HashPassword will generate a bcrypt password hash
func HashPassword(password string) (string, error) {
	return BcryptHasher{Cost: passwordHashCost()}.HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password. Both bcrypt and argon2
// encoded hashes are accepted.
func ComparePasswordAndHash(password, hash string) error {
	if isArgon2Hash(hash) {
		return Argon2Hasher{}.ComparePasswordAndHash(password, hash)
	}
	return BcryptHasher{}.ComparePasswordAndHash(password, hash)
}

// BcryptHasher hashes with bcrypt at the given cost
type BcryptHasher struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", NewValidationError("invalid password", map[string]string{
			"password": "must be no more than 72 bytes long",
		})
	}
	return string(h), err
}

func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// Argon2Hasher hashes with argon2id using encoded hashes
type Argon2Hasher struct {
	Config *argon2.Config
}

var _ PasswordAuthenticator = Argon2Hasher{}

func (a Argon2Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cfg := argon2.DefaultConfig()
	if a.Config != nil {
		cfg = *a.Config
	}

	encoded, err := cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (a Argon2Hasher) ComparePasswordAndHash(password, hash string) error {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(hash))
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// CompositeHasher hashes new passwords with Hasher and verifies any
// supported encoding, so stores can migrate algorithms gradually.
type CompositeHasher struct {
	Hasher PasswordAuthenticator
}

var _ PasswordAuthenticator = CompositeHasher{}

func (c CompositeHasher) HashPassword(password string) (string, error) {
	if c.Hasher == nil {
		return HashPassword(password)
	}
	return c.Hasher.HashPassword(password)
}

func (c CompositeHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// NewPasswordHasher returns the hasher for name, bcrypt by default
func NewPasswordHasher(name string) PasswordAuthenticator {
	switch strings.ToLower(name) {
	case "argon2", "argon2id":
		return CompositeHasher{Hasher: Argon2Hasher{}}
	default:
		return CompositeHasher{Hasher: BcryptHasher{}}
	}
}

func isArgon2Hash(hash string) bool {
	return strings.HasPrefix(hash, "$argon2")
}
