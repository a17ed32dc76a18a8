package dependency

import (
	"context"
	"errors"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/command"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/container"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/notification"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/source"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/transport"
)

var dependencyContainer = struct{}{}

type Container interface {
	Logger() applogger.Logger
	Config() config.Config
	Chain() service.Chain
	Registry() *service.Registry
	LocalEnvironment() *command.LocalEnvironment
	Server() *transport.Server
}

func NewDependencyContainer(logger applogger.Logger, cfg config.Config) Container {
	local := command.NewLocalEnvironment(logger)
	notifier := notification.NewManager(logger, cfg.Notifications)
	sources := source.NewRepository(logger)
	containers := container.NewCompose(logger)
	opener := newEnvironmentOpener(logger, local)
	deployerService := service.NewDeployer(logger, opener, sources, containers, notifier)
	chainService := service.NewChain(logger, deployerService, notifier, cfg.AbortOnError)
	registry := service.NewRegistry(logger)
	server := transport.NewServer(logger, cfg, chainService, registry, notifier, local)

	return &dependencies{
		logger:   logger,
		config:   cfg,
		chain:    chainService,
		registry: registry,
		local:    local,
		server:   server,
	}
}

type dependencies struct {
	logger   applogger.Logger
	config   config.Config
	chain    service.Chain
	registry *service.Registry
	local    *command.LocalEnvironment
	server   *transport.Server
}

func (c *dependencies) Logger() applogger.Logger {
	return c.logger
}

func (c *dependencies) Config() config.Config {
	return c.config
}

func (c *dependencies) Chain() service.Chain {
	return c.chain
}

func (c *dependencies) Registry() *service.Registry {
	return c.registry
}

func (c *dependencies) LocalEnvironment() *command.LocalEnvironment {
	return c.local
}

func (c *dependencies) Server() *transport.Server {
	return c.server
}

func ContainerFromContext(ctx context.Context) (Container, error) {
	v := ctx.Value(dependencyContainer)
	if c, ok := v.(Container); ok {
		return c, nil
	}
	return nil, errors.New("dependency container not found")
}

func ContainerToContext(ctx context.Context, c Container) context.Context {
	return context.WithValue(ctx, dependencyContainer, c)
}
