package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole string

const (
	// RoleAdmin manages the platform
	RoleAdmin AccountRole = "admin"
	// RolePartner is an organization or partner account
	RolePartner AccountRole = "partner"
	// RoleUser is a standard member
	RoleUser AccountRole = "user"
	// RoleMentor offers mentoring services
	RoleMentor AccountRole = "mentor"
)

// DefaultRole is assigned when registration or a federated
// sign-in does not resolve a role.
var DefaultRole = RoleUser

// Account is the account model
type Account struct {
	bun.BaseModel    `bun:"table:accounts,alias:acc"`
	ID               uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email            string      `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash     string      `bun:"password_hash" json:"-"`
	DisplayName      string      `bun:"display_name" json:"display_name,omitempty"`
	Phone            string      `bun:"phone_number" json:"phone_number,omitempty"`
	AvatarURL        string      `bun:"avatar_url" json:"avatar_url,omitempty"`
	Role             AccountRole `bun:"role,notnull" json:"role,omitempty"`
	Category         string      `bun:"category" json:"category,omitempty"`
	Organization     string      `bun:"organization" json:"organization,omitempty"`
	OrganizationRole string      `bun:"organization_role" json:"organization_role,omitempty"`
	EmailVerifiedAt  *time.Time  `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	LoginAttempts    int         `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt   *time.Time  `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt       *time.Time  `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt        *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsVerified reports whether the account completed email verification
func (a *Account) IsVerified() bool {
	return a != nil && a.EmailVerifiedAt != nil
}

// HasPassword is false for federated-only accounts
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// VerificationToken is a single-use token proving email ownership
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`
	Token         string    `bun:"token,pk" json:"-"`
	Identifier    string    `bun:"identifier,notnull" json:"identifier"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// IsExpired is true once now reaches the expiry
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SocialAccount links an account to an external identity provider
type SocialAccount struct {
	bun.BaseModel  `bun:"table:social_accounts,alias:soc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID      uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Provider       string     `bun:"provider,notnull,unique:provider_user" json:"provider"`
	ProviderUserID string     `bun:"provider_user_id,notnull,unique:provider_user" json:"provider_user_id"`
	Email          string     `bun:"email" json:"email,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NormalizeEmail lower cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
