package auth

import (
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

type AuthControllerRoutes struct {
	Register       string
	Verify         string
	Resend         string
	Login          string
	Logout         string
	Session        string
	SessionRefresh string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	Auther       *RouteAuthenticator
	Register     *RegisterAccountHandler
	Resend       *ResendVerificationHandler
	Verify       *VerifyAccountHandler
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if logger != nil {
			ac.Logger = logger
		}
		return ac
	}
}

func WithRouteAuthenticator(auther *RouteAuthenticator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Auther = auther
		return ac
	}
}

// WithAccountHandlers sets the registration and verification handlers
func WithAccountHandlers(register *RegisterAccountHandler, verify *VerifyAccountHandler) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Register = register
		ac.Verify = verify
		if register != nil {
			ac.Resend = NewResendVerificationHandler(register)
		}
		return ac
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:       "/register",
			Verify:         "/verify-email",
			Resend:         "/verify-email/resend",
			Login:          "/login",
			Logout:         "/logout",
			Session:        "/session",
			SessionRefresh: "/session/refresh",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Register == nil || c.Verify == nil {
		panic("Missing account handlers in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Auther.ErrorHandler
	}

	return c
}

// RegisterAuthRoutes mounts the account and session endpoints on app
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")
	app.Get(controller.Routes.Verify, controller.VerifyEmail).Name("verify-email.get")
	app.Post(controller.Routes.Resend, controller.ResendVerification).Name("verify-email-resend.post")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Get(controller.Routes.Logout, controller.LogOut).Name("sign-out.get")

	protected := controller.Auther.ProtectedRoute()
	app.Get(controller.Routes.Session, protected, controller.SessionShow).Name("session.get")
	app.Post(controller.Routes.SessionRefresh, protected, controller.SessionRefresh).Name("session-refresh.post")

	return controller
}

// RegistrationCreatePayload is the registration form payload
type RegistrationCreatePayload struct {
	Email            string `form:"email" json:"email"`
	Password         string `form:"password" json:"password"`
	ConfirmPassword  string `form:"confirm_password" json:"confirm_password"`
	DisplayName      string `form:"display_name" json:"display_name"`
	Phone            string `form:"phone" json:"phone"`
	Category         string `form:"category" json:"category"`
	Organization     string `form:"organization" json:"organization"`
	OrganizationRole string `form:"organization_role" json:"organization_role"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(ValidatePasswordBytes)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, NewValidationError("failed to parse body", nil))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, NewValidationError("invalid registration payload", ValidationErrorsToMap(err)))
	}

	var res *RegisterAccountResponse
	msg := RegisterAccountMessage{
		Email:            payload.Email,
		Password:         payload.Password,
		DisplayName:      payload.DisplayName,
		Phone:            payload.Phone,
		Category:         payload.Category,
		Organization:     payload.Organization,
		OrganizationRole: payload.OrganizationRole,
		OnResponse: func(r *RegisterAccountResponse) {
			res = r
		},
	}

	if err := a.Register.Execute(c.UserContext(), msg); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":    res.Message,
		"account_id": res.AccountID,
	})
}

func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	var res *VerifyAccountResponse
	msg := VerifyAccountMessage{
		Token: c.Query("token"),
		OnResponse: func(r *VerifyAccountResponse) {
			res = r
		},
	}

	if err := a.Verify.Execute(c.UserContext(), msg); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"message":    res.Message,
		"account_id": res.AccountID,
	})
}

// ResendVerificationPayload asks for a new verification token
type ResendVerificationPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	payload := new(ResendVerificationPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, NewValidationError("failed to parse body", nil))
	}

	if err := a.Resend.Execute(c.UserContext(), ResendVerificationMessage{Email: payload.Email}); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": "if the account exists and is not verified a new link has been sent",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether the session should outlive the default
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	r.Identifier = NormalizeEmail(r.Identifier)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SessionResponse is the public view of a session
type SessionResponse struct {
	Account   SessionAccount `json:"account"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

type SessionAccount struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// NewSessionResponse builds the response body for session
func NewSessionResponse(session Session) SessionResponse {
	data := session.GetData()
	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}

	return SessionResponse{
		Account: SessionAccount{
			ID:          session.GetUserID(),
			Email:       str("email"),
			DisplayName: str("name"),
			Role:        session.GetRole().String(),
			AvatarURL:   str("avatar"),
		},
		ExpiresAt: session.GetExpiresAt(),
	}
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, NewValidationError("failed to parse body", nil))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, NewValidationError("invalid login payload", ValidationErrorsToMap(err)))
	}

	if a.Debug {
		a.Logger.Debug("login payload", "identifier", payload.Identifier, "remember_me", payload.RememberMe)
	}

	token, err := a.Auther.Login(c, payload)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	session, err := a.Auther.SessionFromToken(token)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(NewSessionResponse(session))
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Auther.Logout(c)
	return c.Redirect("/", http.StatusTemporaryRedirect)
}

func (a *AuthController) SessionShow(c *fiber.Ctx) error {
	session, err := a.Auther.CurrentSession(c)
	if err != nil {
		return a.Auther.AuthErrorHandler(c, err)
	}

	if a.Debug {
		a.Logger.Debug("session", "data", print.MaybePrettyJSON(session))
	}

	return c.JSON(NewSessionResponse(session))
}

// SessionRefresh re-issues the session from the current account record.
// This is how a role change made by an admin reaches an existing session.
func (a *AuthController) SessionRefresh(c *fiber.Ctx) error {
	raw, err := a.Auther.RawToken(c)
	if err != nil {
		return a.Auther.AuthErrorHandler(c, err)
	}

	token, err := a.Auther.RefreshSession(c.UserContext(), raw)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.Auther.SetSessionCookie(c, token, a.Auther.GetCookieDuration())

	session, err := a.Auther.SessionFromToken(token)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(NewSessionResponse(session))
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
