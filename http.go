package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/goliatone/go-portal-auth/middleware/jwtware"
)

// ErrorResponse is the body sent to JSON clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

const genericServerError = "An unexpected server error occurred"

type RouteAuthenticator struct {
	auth                   Authenticator
	tokens                 TokenService
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	now                    Clock
	listeners              []ValidationListener
	Logger                 Logger
	AuthErrorHandler       fiber.ErrorHandler
	ErrorHandler           fiber.ErrorHandler
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("authenticator is required", errors.CategoryInternal)
	}

	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	var tokens TokenService
	if p, ok := auther.(interface{ TokenService() TokenService }); ok {
		tokens = p.TokenService()
	} else {
		tokens = NewTokenService(
			[]byte(cfg.GetSigningKey()),
			cfg.GetTokenExpiration(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			defLogger{},
		)
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		tokens:                 tokens,
		Logger:                 defLogger{},
		now:                    time.Now,
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a *RouteAuthenticator) WithClock(c Clock) *RouteAuthenticator {
	a.now = normalizeClock(c)
	return a
}

// WithValidationListeners runs listeners on every protected request after
// the token validated and before the role check. A listener error rejects
// the request.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// ProtectedRoute returns a middleware that only lets sessions with one of
// roles through. Without roles any valid session passes. Rejected requests
// are handled by AuthErrorHandler and never reach the route handler.
func (a *RouteAuthenticator) ProtectedRoute(roles ...AccountRole) fiber.Handler {
	gate := NewGate(roles...)
	for _, role := range roles {
		if !role.IsValid() {
			a.Logger.Warn("protected route declares an unknown role, it will never match", "role", string(role))
		}
	}

	cfg := jwtware.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return a.AuthErrorHandler(c, err)
		},
		TokenValidator: jwtware.TokenValidatorFunc(a.validate),
		AllowedRoles:   gate.Allowed().Strings(),
		RoleChecker: func(claims jwtware.AuthClaims, _ []string) bool {
			authClaims, ok := claims.(AuthClaims)
			if !ok {
				return false
			}
			session, err := sessionFromAuthClaims(authClaims)
			if err != nil {
				return false
			}
			return gate.Decide(session) == DecisionAllow
		},
		ContextEnricher: ContextEnricherAdapter,
		AuthScheme:      a.cfg.GetAuthScheme(),
		ContextKey:      a.cfg.GetContextKey(),
		TokenLookup:     a.cfg.GetTokenLookup(),
	}

	RegisterValidationListeners(&cfg, a.listeners...)

	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	out, ok := claims.(jwtware.AuthClaims)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return out, nil
}

// Login authenticates the payload and sets the session cookie
func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Info("login rejected", "error", err)
		return "", err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.SetSessionCookie(c, token, duration)
	return token, nil
}

func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.cookieDel(c, a.cfg.GetContextKey())
}

// RawToken returns the session token the request carries
func (a *RouteAuthenticator) RawToken(c *fiber.Ctx) (string, error) {
	raw, err := jwtware.ExtractRawToken(c, jwtware.GetExtractors(a.cfg.GetTokenLookup(), a.cfg.GetAuthScheme()))
	if err != nil || raw == "" {
		return "", ErrUnauthorized
	}
	return raw, nil
}

// RefreshSession re-issues raw from the current account record
func (a *RouteAuthenticator) RefreshSession(ctx context.Context, raw string) (string, error) {
	return a.auth.RefreshSession(ctx, raw)
}

// SessionFromToken validates raw and returns its session
func (a *RouteAuthenticator) SessionFromToken(raw string) (Session, error) {
	return a.auth.SessionFromToken(raw)
}

// CurrentSession returns the session stored by ProtectedRoute
func (a *RouteAuthenticator) CurrentSession(c *fiber.Ctx) (*SessionObject, error) {
	claims, ok := GetFiberClaims(c, a.cfg.GetContextKey())
	if !ok {
		return nil, ErrUnableToFindSession
	}
	return sessionFromAuthClaims(claims)
}

func (a *RouteAuthenticator) GetRedirect(c *fiber.Ctx, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(c, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(c *fiber.Ctx) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	r := c.Cookies(rejectedRoute, c.Get(fiber.HeaderReferer))
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(c, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(c *fiber.Ctx) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&fiber.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  a.now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SetSessionCookie stores token in the session cookie
func (a *RouteAuthenticator) SetSessionCookie(c *fiber.Ctx, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  a.now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// defaultAuthErrHandler sends browsers to the sign-in page and gives JSON
// clients the error body
func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	richErr := authError(err)

	a.Logger.Info(
		"authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	if WantsJSON(c) {
		return c.Status(HTTPStatus(richErr)).JSON(NewErrorResponse(richErr))
	}

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == fiber.MethodGet {
		statusCode = http.StatusFound
	}

	return c.Redirect(a.loginPath(), statusCode)
}

func (a *RouteAuthenticator) loginPath() string {
	if p := a.cfg.GetLoginPath(); p != "" {
		return p
	}
	return "/login"
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = NewInternalError(err, genericServerError)
	}

	if richErr.Category == errors.CategoryInternal {
		a.Logger.Error(
			"request failed",
			"error", richErr.Error(),
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return c.Status(HTTPStatus(richErr)).JSON(NewErrorResponse(richErr))
}

// authError maps middleware and token errors to auth sentinels
func authError(err error) *errors.Error {
	switch {
	case err == nil:
		return ErrUnauthorized
	case stderrors.Is(err, jwtware.ErrRoleNotAllowed):
		return ErrForbidden
	case stderrors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return ErrUnauthorized
	case IsTokenExpiredError(err):
		return ErrTokenExpired
	case IsMalformedError(err):
		return ErrTokenMalformed
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.Category == errors.CategoryAuth || richErr.Category == errors.CategoryAuthz {
			return richErr
		}
	}

	return ErrUnauthorized
}

// NewErrorResponse builds the client body for err. Internal errors never
// leak their message.
func NewErrorResponse(err error) ErrorResponse {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return ErrorResponse{Error: ErrorBody{Code: TextCodeInternal, Message: genericServerError}}
	}

	if richErr.Category == errors.CategoryInternal || HTTPStatus(richErr) >= http.StatusInternalServerError {
		return ErrorResponse{Error: ErrorBody{Code: TextCodeInternal, Message: genericServerError}}
	}

	body := ErrorBody{
		Code:    richErr.TextCode,
		Message: richErr.Message,
	}

	if fields, ok := richErr.Metadata["fields"].(map[string]string); ok && len(fields) > 0 {
		body.Fields = fields
	}

	return ErrorResponse{Error: body}
}

// WantsJSON reports whether the client asked for a JSON response
func WantsJSON(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	if strings.Contains(accept, fiber.MIMEApplicationJSON) {
		return true
	}
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) && !strings.Contains(accept, fiber.MIMETextHTML)
}
