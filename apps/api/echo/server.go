package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/application"
	"github.com/darasahq/darasa/core/cohort"
	"github.com/darasahq/darasa/core/ratelimit"
	"github.com/darasahq/darasa/core/session"
	"github.com/darasahq/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		AppSvc     *application.Service
		CohortSvc  *cohort.Service
		Validate   *validator.Validate
		Translator ut.Translator

		// RateLimitStore and RateLimitRules default to an in-memory store
		// with the configured policies; tests inject lenient ones.
		RateLimitStore ratelimit.Store
		RateLimitRules *ratelimit.Rules

		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps *ServerDeps
		app  *echo.Echo

		adminKeeper   *session.Keeper
		studentKeeper *session.Keeper

		errCh      chan error
		shutdownCh chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps *ServerDeps) (Server, error) {
	conf := deps.Conf
	secure := !(conf.Debug || conf.TestMode)

	adminKeeper, err := session.NewKeeper(
		conf.Session.AdminCookieName, conf.Session.AdminSecret,
		conf.Session.IdleTimeout, conf.Session.AbsoluteTimeout, secure,
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating admin session keeper")
	}
	studentKeeper, err := session.NewKeeper(
		conf.Session.StudentCookieName, conf.Session.StudentSecret,
		conf.Session.IdleTimeout, conf.Session.AbsoluteTimeout, secure,
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating student session keeper")
	}

	if deps.RateLimitStore == nil {
		deps.RateLimitStore = ratelimit.NewMemoryStore()
	}
	if deps.RateLimitRules == nil {
		deps.RateLimitRules = defaultRules(conf)
	}

	s := &server{
		deps:          deps,
		app:           echo.New(),
		adminKeeper:   adminKeeper,
		studentKeeper: studentKeeper,
		errCh:         make(chan error, 1),
		shutdownCh:    make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownCh, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s, nil
}

// defaultRules applies the tight auth policy to the endpoints an attacker
// would hammer: logins, password resets and public application submission.
func defaultRules(conf *core.Config) *ratelimit.Rules {
	fallback := ratelimit.Policy{Window: conf.RateLimit.DefaultWindow, MaxRequests: conf.RateLimit.DefaultMaxRequests}
	tight := ratelimit.Policy{Window: conf.RateLimit.AuthWindow, MaxRequests: conf.RateLimit.AuthMaxRequests}

	return ratelimit.NewRules(
		fallback,
		ratelimit.Rule{Method: http.MethodPost, PathPrefix: "/api/users/login", Policy: tight},
		ratelimit.Rule{Method: http.MethodPost, PathPrefix: "/api/users/password-reset", Policy: tight},
		ratelimit.Rule{Method: http.MethodPost, PathPrefix: "/api/student/login", Policy: tight},
		ratelimit.Rule{Method: http.MethodPost, PathPrefix: "/api/applications", Policy: tight},
	)
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())

	// rate limiting comes first: over-limit requests never reach the
	// handlers (nor the auth middlewares)
	s.app.Use(rateLimitMiddleware(s.deps.RateLimitStore, s.deps.RateLimitRules))

	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	if conf.Server.TrustProxy {
		s.app.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		s.app.IPExtractor = echo.ExtractIPDirect()
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	adminAuth := sessionMiddleware(s.adminKeeper)
	studentAuth := sessionMiddleware(s.studentKeeper)

	registerUserAPI(api, adminAuth, s.adminKeeper, s.deps)
	registerApplicationAPI(api, adminAuth, s.deps)
	registerCohortAPI(api, adminAuth, s.deps)
	registerStudentAPI(api, studentAuth, s.studentKeeper, s.deps)
}

// signalShutdown gracefully shuts down the server when a shutdown error is
// caught by the HTTP error handler.
func (s *server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *server) Start() {
	s.errCh <- s.app.Start(s.deps.Conf.Server.Address)
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errCh
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownCh
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
