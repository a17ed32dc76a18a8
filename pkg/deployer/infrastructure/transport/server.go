package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"golang.org/x/sync/errgroup"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/command"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
)

const shutdownTimeout = 10 * time.Second

// Notifier delivers the request-level events the endpoints emit; terminal
// chain statuses are reported by the chain itself.
type Notifier interface {
	NotifyDeployEvent(repository model.RepositoryID, branch string, status model.EventStatus, detail string)
	NotifyWebhookEvent(event, repository, branch, pusher string)
}

// Server exposes the webhook, manual deploy and diagnostic endpoints.
type Server struct {
	logger   applogger.Logger
	config   config.Config
	chain    service.Chain
	registry *service.Registry
	notifier Notifier
	local    *command.LocalEnvironment
	echo     *echo.Echo

	// lifecycle context for submitted chain runs, set by Run; deployments
	// must outlive the HTTP request that triggered them
	baseCtx context.Context
}

func NewServer(
	logger applogger.Logger,
	cfg config.Config,
	chain service.Chain,
	registry *service.Registry,
	notifier Notifier,
	local *command.LocalEnvironment,
) *Server {
	server := &Server{
		logger:   logger,
		config:   cfg,
		chain:    chain,
		registry: registry,
		notifier: notifier,
		local:    local,
		baseCtx:  context.Background(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/webhook", server.handleWebhook)
	e.POST("/deploy", server.handleDeploy, server.requireAPIKey(func() string { return server.config.DeployAPIKey }))
	e.GET("/health", server.handleHealth)
	e.GET("/test-command", server.handleTestCommand, server.requireAPIKey(func() string { return server.config.DiagnosticsAPIKey }))
	e.GET("/list-files", server.handleListFiles, server.requireAPIKey(func() string { return server.config.DiagnosticsAPIKey }))
	server.echo = e
	return server
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// chain runs submitted through the registry share ctx and are cancelled with
// the process.
func (s *Server) Run(ctx context.Context, address string) error {
	if address == "" {
		address = s.config.ListenAddress
	}
	s.baseCtx = ctx
	s.logger.Info("listening on " + address)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.echo.Start(address)
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "OK"})
}

func (s *Server) requireAPIKey(key func() string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-API-Key") != key() {
				s.logger.Info("rejected request with invalid api key: " + c.Path())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API Key")
			}
			return next(c)
		}
	}
}
