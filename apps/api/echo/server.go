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

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/dashboard"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
	"github.com/mmust/marktrack/core/scope"
)

type (
	Deps struct {
		Validate     *validator.Validate
		Translator   ut.Translator
		SchoolSvc    *school.Service
		Scopes       *scope.Resolver
		MarksSvc     *marks.Service
		Ingest       *ingest.Engine
		ComplaintSvc *complaint.Service
		DashboardSvc *dashboard.Service
		Metrics      http.Handler // nil disables /metrics
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)
	if s.deps.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))
	lecturer := lecturerMiddleware(s.deps.SchoolSvc, s.deps.Scopes)
	student := studentMiddleware(s.deps.SchoolSvc)

	registerStudentAPI(v1, jwt, student, s.conf, s.deps)
	registerComplaintAPI(v1, jwt, lecturer, s.deps)
	registerMarksAPI(v1, jwt, lecturer, s.conf, s.deps)
	registerDashboardAPI(v1, jwt, lecturer, s.deps)
}

// Start blocks until the server stops. Errors other than a graceful close are sent on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
