package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/dependency"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	ctx = listenOSKillSignalsContext(ctx)
	mainLogger := logger.NewTextLogger()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	deployerConfig, err := config.Load(configPath)
	if err != nil {
		mainLogger.FatalError(err, "failed load deployer config")
	}
	container := dependency.NewDependencyContainer(mainLogger, deployerConfig)
	ctx = dependency.ContainerToContext(ctx, container)

	app := &cli.App{
		Name: "deployer",
		Commands: cli.Commands{
			&cli.Command{
				Name: "serve",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name: "address",
					},
				},
				Action: func(c *cli.Context) error {
					return serve(c.Context, c.String("address"))
				},
			},
			&cli.Command{
				Name: "deploy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "repository",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "branch",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return deploy(c.Context, c.String("repository"), c.String("branch"))
				},
			},
			&cli.Command{
				Name: "check",
				Action: func(c *cli.Context) error {
					return check(c.Context)
				},
			},
		},
	}
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		mainLogger.FatalError(err, "failed execute command "+strings.Join(os.Args, " "))
	}
}

func listenOSKillSignalsContext(ctx context.Context) context.Context {
	var cancelFunc context.CancelFunc
	ctx, cancelFunc = context.WithCancel(ctx)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-ch:
			cancelFunc()
		case <-ctx.Done():
			return
		}
	}()
	return ctx
}
