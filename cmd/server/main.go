package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activity/metrics"
	"github.com/goliatone/go-portal-auth/activity/redisstream"
	"github.com/goliatone/go-portal-auth/config"
	"github.com/goliatone/go-portal-auth/mailer"
	"github.com/goliatone/go-portal-auth/social"
	"github.com/goliatone/go-portal-auth/social/providers/google"
	"github.com/goliatone/go-portal-auth/social/providers/oidc"
)

type App struct {
	config   *config.Config
	db       *bun.DB
	repo     auth.RepositoryManager
	auth     *auth.Auther
	routes   *auth.RouteAuthenticator
	activity auth.MultiActivitySink
	registry *prometheus.Registry
	redis    *redis.Client
	srv      *fiber.App
	logger   *auth.ZerologLogger
}

func (a *App) GetLogger(name string) auth.Logger {
	return a.logger.Named(name)
}

func main() {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("service", "portal-auth").
		Logger()

	cfg, err := config.Load(".env")
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Debug {
		zl = zl.Level(zerolog.DebugLevel)
	} else {
		zl = zl.Level(zerolog.InfoLevel)
	}

	app := &App{
		config: cfg,
		logger: auth.NewZerologLogger(zl),
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		zl.Fatal().Err(err).Msg("failed to set up persistence")
	}
	defer app.db.Close()

	if err := WithActivity(ctx, app); err != nil {
		zl.Fatal().Err(err).Msg("failed to set up activity sinks")
	}

	WithHTTPServer(app)

	if err := WithHTTPAuth(ctx, app); err != nil {
		zl.Fatal().Err(err).Msg("failed to set up authentication")
	}

	ProtectedRoutes(app)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go SweepVerificationTokens(sweepCtx, app, cfg.TokenSweepInterval)

	go func() {
		if err := app.srv.Listen(cfg.Addr); err != nil {
			zl.Error().Err(err).Msg("server stopped")
		}
	}()

	WaitExitSignal()
	stopSweep()

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.ShutdownWithContext(shutdown); err != nil {
		zl.Error().Err(err).Msg("graceful shutdown failed")
	}

	if app.redis != nil {
		app.redis.Close()
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := config.OpenDB(app.config.Database)
	if err != nil {
		return err
	}

	if err := auth.CreateSchema(ctx, db); err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.db = db
	app.repo = repo
	return nil
}

// WithActivity wires the prometheus counter sink and, when a Redis
// address is configured, the stream sink.
func WithActivity(ctx context.Context, app *App) error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector())

	if app.config.Metrics.Enabled {
		sink, err := metrics.New(app.registry, metrics.WithNamespace(app.config.Metrics.Namespace))
		if err != nil {
			return err
		}
		app.activity = append(app.activity, sink)
	}

	if app.config.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.Redis.Addr,
		Password: app.config.Redis.Password,
		DB:       app.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		app.GetLogger("activity").Warn("redis unavailable, stream sink disabled", "addr", app.config.Redis.Addr, "error", err)
		return nil
	}

	app.redis = client
	app.activity = append(app.activity, redisstream.New(client, redisstream.Config{
		Stream: app.config.Redis.Stream,
	}))

	return nil
}

// SweepVerificationTokens purges expired verification tokens every
// interval until ctx is done.
func SweepVerificationTokens(ctx context.Context, app *App, interval time.Duration) {
	if interval <= 0 {
		return
	}

	logger := app.GetLogger("auth:sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.repo.VerificationTokens().DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Error("verification token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired verification tokens", "count", n)
			}
		}
	}
}

func WithHTTPServer(app *App) {
	app.srv = fiber.New(fiber.Config{
		AppName:           "portal-auth",
		EnablePrintRoutes: app.config.Debug,
	})

	app.srv.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("portal")
	})

	if app.config.Metrics.Enabled {
		app.srv.Get(app.config.Metrics.Path, adaptor.HTTPHandler(
			promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		))
	}
}

func WithHTTPAuth(ctx context.Context, app *App) error {
	cfg := app.config
	hasher := auth.NewPasswordHasher(cfg.PasswordHasher)

	userProvider := auth.NewUserProvider(app.repo.Accounts()).
		WithLogger(app.GetLogger("auth:provider")).
		WithPasswordHasher(hasher).
		WithActivitySink(app.activity)

	app.auth = auth.NewAuthenticator(userProvider, cfg).
		WithLogger(app.GetLogger("auth:session")).
		WithActivitySink(app.activity)

	routes, err := auth.NewHTTPAuthenticator(app.auth, cfg)
	if err != nil {
		return err
	}
	routes.WithLogger(app.GetLogger("auth:http"))
	app.routes = routes

	register := auth.NewRegisterAccountHandler(app.repo, notifier(app)).
		WithLogger(app.GetLogger("auth:register")).
		WithPasswordHasher(hasher).
		WithActivitySink(app.activity).
		WithPhoneRegion(cfg.PhoneRegion)

	verify := auth.NewVerifyAccountHandler(app.repo).
		WithLogger(app.GetLogger("auth:verify")).
		WithActivitySink(app.activity)

	auth.RegisterAuthRoutes(app.srv,
		auth.WithControllerLogger(app.GetLogger("auth:controller")),
		auth.WithRouteAuthenticator(routes),
		auth.WithAccountHandlers(register, verify),
		auth.WithControllerDebug(cfg.Debug),
	)

	var providers []social.SocialAuthOption
	if cfg.Google.ClientID != "" {
		providers = append(providers, social.WithProvider(google.New(google.Config{ClientID: cfg.Google.ClientID})))
	}

	if cfg.OIDC.ClientID != "" {
		provider, err := oidc.New(oidc.Config{
			Name:     cfg.OIDC.Name,
			Domain:   cfg.OIDC.Domain,
			Issuer:   cfg.OIDC.Issuer,
			ClientID: cfg.OIDC.ClientID,
		})
		if err != nil {
			return err
		}
		providers = append(providers, social.WithProvider(provider))
	}

	if len(providers) == 0 {
		return nil
	}

	socialAuth := social.NewSocialAuthenticator(app.repo, app.auth, append(providers,
		social.WithActivitySink(app.activity),
		social.WithLogger(app.GetLogger("auth:social")),
	)...)

	social.NewHTTPController(socialAuth, routes, social.HTTPConfig{}).
		RegisterRoutes(app.srv)

	return nil
}

func notifier(app *App) auth.Notifier {
	smtp := app.config.SMTP
	if smtp.Host == "" {
		return mailer.LogNotifier{
			VerifyURL: app.config.VerifyURL,
			Logger:    app.GetLogger("mailer"),
		}
	}

	return mailer.New(mailer.Config{
		Host:        smtp.Host,
		Port:        smtp.Port,
		Username:    smtp.Username,
		Password:    smtp.Password,
		From:        smtp.From,
		VerifyURL:   app.config.VerifyURL,
		SendTimeout: smtp.SendTimeout,
	})
}

// ProtectedRoutes registers one dashboard per role. Each is reachable
// only with a session carrying that role, the admin can open all of them.
func ProtectedRoutes(app *App) {
	dashboards := map[string][]auth.AccountRole{
		"/dashboard/admin":   {auth.RoleAdmin},
		"/dashboard/partner": {auth.RolePartner, auth.RoleAdmin},
		"/dashboard/mentor":  {auth.RoleMentor, auth.RoleAdmin},
		"/dashboard/user":    {auth.RoleUser, auth.RoleAdmin},
	}

	for path, roles := range dashboards {
		app.srv.Get(path, app.routes.ProtectedRoute(roles...), DashboardShow(app))
	}
}

func DashboardShow(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := app.routes.CurrentSession(c)
		if err != nil {
			return app.routes.AuthErrorHandler(c, err)
		}

		return c.JSON(fiber.Map{
			"path":    c.Path(),
			"account": auth.NewSessionResponse(session).Account,
		})
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(
		ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
