package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// GetRole returns the role snapshot of the session. Sessions without a
// known role return an empty role which no route accepts.
func (s *SessionObject) GetRole() AccountRole {
	if s.Data == nil {
		return ""
	}

	roleStr, ok := s.Data["role"].(string)
	if !ok {
		return ""
	}

	role, valid := ParseRole(roleStr)
	if !valid {
		return ""
	}

	return role
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiresAt() *time.Time {
	return s.ExpirationDate
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// HasRole checks if the session carries role
func (s *SessionObject) HasRole(role AccountRole) bool {
	return role.IsValid() && s.GetRole() == role
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToParseData
	}

	data := map[string]any{
		"role": claims.Role(),
	}

	if name := claims.DisplayName(); name != "" {
		data["name"] = name
	}

	if email := claims.Email(); email != "" {
		data["email"] = email
	}

	if avatar := claims.AvatarURL(); avatar != "" {
		data["avatar"] = avatar
	}

	var audience []string
	issuer := claims.Subject()

	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}

		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)

		if jwtClaims.RegisteredClaims.Issuer != "" {
			issuer = jwtClaims.RegisteredClaims.Issuer
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Audience:       audience,
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
