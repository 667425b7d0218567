// Package echoapi is the admin HTTP API of the bootstrap orchestrator.
package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/bootstrap"
)

type (
	// Bootstrapper is the orchestrator as seen by the API.
	Bootstrapper interface {
		Run(ctx context.Context, progress bootstrap.ProgressFunc) (bootstrap.InitializationReport, error)
		Start(ctx context.Context, progress bootstrap.ProgressFunc) error
		GetStatus(ctx context.Context) (bootstrap.Status, error)
		ResetState(ctx context.Context, includeUserData bool) (bootstrap.OperationResult, error)
		Phase() bootstrap.Phase
		Running() bool
	}

	HealthChecker interface {
		HealthCheck(ctx context.Context) core.Health
	}

	Options struct {
		Address        string
		Debug          bool
		DisableReqLogs bool
		SecretKey      string
		Bootstrapper   Bootstrapper
		Health         HealthChecker
		Metrics        http.Handler // optional
		Logger         core.Logger
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in debug mode
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)
	s.app.GET("/health", s.health)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(s.opts.SecretKey))

	registerBootstrapAPI(v1, jwt, s.opts.Bootstrapper)
}

func (s *server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Masomo API!")
}

type healthResponse struct {
	core.Health
	Phase   string `json:"phase"`
	Running bool   `json:"running"`
}

func (s *server) health(ctx echo.Context) error {
	c, cancel := context.WithTimeout(ctx.Request().Context(), 5*time.Second)
	defer cancel()

	res := healthResponse{
		Health:  s.opts.Health.HealthCheck(c),
		Phase:   s.opts.Bootstrapper.Phase().String(),
		Running: s.opts.Bootstrapper.Running(),
	}
	code := http.StatusOK
	if !res.Healthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, res)
}
