package social

import (
	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-portal-auth"
)

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	routes        *auth.RouteAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth")
	PathPrefix string

	// ErrorHandler handles errors (default: the RouteAuthenticator one)
	ErrorHandler fiber.ErrorHandler
}

// SignInPayload carries the identity token issued by the provider
type SignInPayload struct {
	IDToken string `json:"id_token" form:"id_token"`
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(sa *SocialAuthenticator, routes *auth.RouteAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = routes.ErrorHandler
	}

	return &HTTPController{
		authenticator: sa,
		routes:        routes,
		config:        cfg,
	}
}

// RegisterRoutes registers social auth routes.
func (c *HTTPController) RegisterRoutes(app fiber.Router) {
	group := app.Group(c.config.PathPrefix)
	group.Get("/providers", c.ListProviders).Name("social-providers.get")
	group.Post("/:provider", c.SignIn).Name("social-sign-in.post")
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"providers": c.authenticator.Providers(),
	})
}

// SignIn exchanges a provider identity token for a session cookie.
func (c *HTTPController) SignIn(ctx *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return c.config.ErrorHandler(ctx, auth.NewValidationError("failed to parse body", nil))
	}

	if payload.IDToken == "" {
		return c.config.ErrorHandler(ctx, auth.NewValidationError("id_token is required", map[string]string{
			"id_token": "cannot be blank",
		}))
	}

	result, err := c.authenticator.SignIn(ctx.UserContext(), ctx.Params("provider"), payload.IDToken)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	c.routes.SetSessionCookie(ctx, result.Token, c.routes.GetCookieDuration())

	session, err := c.routes.SessionFromToken(result.Token)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"account":        auth.NewSessionResponse(session).Account,
		"expires_at":     session.GetExpiresAt(),
		"is_new_account": result.IsNewAccount,
	})
}
