package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/suggestion"
	"github.com/trezcool/preschool/core/user"
)

type ServerDeps struct {
	Conf           *core.Config
	Logger         core.Logger
	Clock          clockwork.Clock
	Validate       *validator.Validate
	Translator     ut.Translator
	Cache          core.Cache
	UserSvc        user.Service
	StudentSvc     student.Service
	ProgressSvc    progress.Service
	PlanSvc        plan.Service
	ReportSvc      report.Service
	Renderer       report.Renderer
	SuggestionSvc  suggestion.Service
	DisableReqLogs bool
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *Auth
	metrics  *Metrics
	cache    *responseCache
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     NewAuth(deps.Conf),
		metrics:  NewMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.cache = &responseCache{
		cache:   deps.Cache,
		ttl:     deps.Conf.Redis.CacheTTL,
		metrics: s.metrics,
		logger:  deps.Logger,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.Middleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	if conf.ImageHost.Provider == "local" && strings.HasPrefix(conf.ImageHost.MediaURL, "/") {
		s.app.Static(conf.ImageHost.MediaURL, conf.ImageHost.MediaDir)
	}

	api := s.app.Group("/api")
	authed := []echo.MiddlewareFunc{s.auth.Middleware(), userMiddleware(s.deps.UserSvc)}
	limiter := newIPRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst, s.deps.Clock)

	registerUserAPI(api, s, limiter, authed)
	registerTeacherAPI(api, s, authed)
	registerStudentAPI(api, s, authed)
	registerProgressAPI(api, s, authed)
	registerPlanAPI(api, s, authed)
	registerSuggestionAPI(api, s, authed)
	registerReportAPI(api, s, authed)
}

// Start listens on the configured address. Listening errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Auth returns the token issuer of the server.
func (s *Server) Auth() *Auth {
	return s.auth
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"build":  s.deps.Conf.Build,
		"env":    s.deps.Conf.Env,
	})
}
