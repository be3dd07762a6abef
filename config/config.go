// Package config loads the portal auth settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-portal-auth"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config implements auth.Config. Every field can be set through its
// environment variable, a .env file is read first when present.
type Config struct {
	Addr  string `env:"HTTP_ADDR" envDefault:":8080"`
	Debug bool   `env:"DEBUG"`

	SigningKey            string   `env:"AUTH_SIGNING_KEY"`
	SigningMethod         string   `env:"AUTH_SIGNING_METHOD" envDefault:"HS256"`
	ContextKey            string   `env:"AUTH_CONTEXT_KEY" envDefault:"portal_session"`
	TokenExpiration       int      `env:"AUTH_TOKEN_EXPIRATION_HOURS" envDefault:"24"`
	ExtendedTokenDuration int      `env:"AUTH_EXTENDED_TOKEN_HOURS" envDefault:"720"`
	TokenLookup           string   `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization,cookie:portal_session"`
	AuthScheme            string   `env:"AUTH_SCHEME" envDefault:"Bearer"`
	Issuer                string   `env:"AUTH_ISSUER" envDefault:"portal"`
	Audience              []string `env:"AUTH_AUDIENCE" envSeparator:"," envDefault:"portal"`
	RejectedRouteKey      string   `env:"AUTH_REJECTED_ROUTE_KEY" envDefault:"login_redirect"`
	RejectedRouteDefault  string   `env:"AUTH_REJECTED_ROUTE_DEFAULT" envDefault:"/"`
	LoginPath             string   `env:"AUTH_LOGIN_PATH" envDefault:"/login"`
	PasswordHasher        string   `env:"AUTH_PASSWORD_HASHER" envDefault:"bcrypt"`
	PhoneRegion           string   `env:"AUTH_PHONE_REGION" envDefault:"US"`
	VerifyURL             string   `env:"AUTH_VERIFY_URL" envDefault:"http://localhost:8080/verify-email"`

	// TokenSweepInterval controls how often expired verification tokens
	// are purged. Zero disables the sweeper.
	TokenSweepInterval time.Duration `env:"AUTH_TOKEN_SWEEP_INTERVAL" envDefault:"1h"`

	Database Database `envPrefix:"DB_"`
	SMTP     SMTP     `envPrefix:"SMTP_"`
	Google   Google   `envPrefix:"GOOGLE_"`
	OIDC     OIDC     `envPrefix:"OIDC_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Metrics  Metrics  `envPrefix:"METRICS_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"file:portal.db?cache=shared"`
	Debug  bool   `env:"DEBUG"`
}

// SMTP settings, an empty Host selects the logging notifier
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
	// SendTimeout bounds one delivery, registration holds its transaction open meanwhile
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`
}

type Google struct {
	ClientID string `env:"CLIENT_ID"`
}

// OIDC settings for a generic issuer, an empty ClientID disables it
type OIDC struct {
	Name     string `env:"NAME" envDefault:"oidc"`
	Domain   string `env:"DOMAIN"`
	Issuer   string `env:"ISSUER"`
	ClientID string `env:"CLIENT_ID"`
}

// Redis settings, an empty Addr disables the stream sink
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Stream   string `env:"STREAM" envDefault:"portal:auth:activity"`
}

type Metrics struct {
	Enabled   bool   `env:"ENABLED" envDefault:"true"`
	Namespace string `env:"NAMESPACE" envDefault:"portal"`
	Path      string `env:"PATH" envDefault:"/metrics"`
}

var _ auth.Config = Config{}

// Load reads the given .env files, missing files are ignored, and
// parses the environment into a validated Config.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, auth.NewInternalError(err, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the server can not start without
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.SigningMethod, validation.In("HS256")),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.ExtendedTokenDuration, validation.Min(0)),
		validation.Field(&c.LoginPath, validation.Required),
		validation.Field(&c.PasswordHasher, validation.In("bcrypt", "argon2", "argon2id")),
		validation.Field(&c.VerifyURL, validation.Required, is.URL),
		validation.Field(&c.Database),
		validation.Field(&c.SMTP),
	)
	if err != nil {
		return auth.NewValidationError("invalid configuration", auth.ValidationErrorsToMap(err))
	}
	return nil
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (s SMTP) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return nil
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.From, validation.Required, is.Email),
	)
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetSigningMethod() string {
	return c.SigningMethod
}

func (c Config) GetContextKey() string {
	return c.ContextKey
}

func (c Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c Config) GetExtendedTokenDuration() int {
	return c.ExtendedTokenDuration
}

func (c Config) GetTokenLookup() string {
	return c.TokenLookup
}

func (c Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetAudience() []string {
	return c.Audience
}

func (c Config) GetRejectedRouteKey() string {
	return c.RejectedRouteKey
}

func (c Config) GetRejectedRouteDefault() string {
	return c.RejectedRouteDefault
}

func (c Config) GetLoginPath() string {
	return c.LoginPath
}
