package container

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
)

// Compose converges a target's container stack through its execution
// environment, using whichever compose binary the environment detected.
type Compose struct {
	logger applogger.Logger
}

func NewCompose(logger applogger.Logger) *Compose {
	return &Compose{logger: logger}
}

// Converge brings the stack to its desired state. With rebuild it tears the
// stack down first (tolerating benign teardown errors) and brings it back up
// rebuilding images; without rebuild it only ensures the stack is running.
// A non-benign failure during down aborts without attempting up.
func (c *Compose) Converge(ctx context.Context, env service.Environment, target model.Target, rebuild bool) error {
	bin, err := env.ComposeBinary(ctx)
	if err != nil {
		return err
	}
	prefix, err := env.ElevationPrefix(ctx, target.Sudo)
	if err != nil {
		return err
	}
	if !rebuild {
		c.logger.Info(fmt.Sprintf("ensuring stack in %v is running", target.DeployDir))
		_, err = env.Run(ctx, service.RunSpec{
			Command: fmt.Sprintf("%s%s up -d", prefix, bin),
			WorkDir: target.DeployDir,
		})
		return errors.Wrapf(err, "failed to bring up stack in %v", target.DeployDir)
	}

	c.logger.Info(fmt.Sprintf("taking down stack in %v...", target.DeployDir))
	_, err = env.Run(ctx, service.RunSpec{
		Command:     fmt.Sprintf("%s%s down --remove-orphans", prefix, bin),
		WorkDir:     target.DeployDir,
		AllowBenign: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to take down stack in %v", target.DeployDir)
	}
	c.logger.Info(fmt.Sprintf("rebuilding stack in %v...", target.DeployDir))
	_, err = env.Run(ctx, service.RunSpec{
		Command: fmt.Sprintf("%s%s up -d --build --remove-orphans", prefix, bin),
		WorkDir: target.DeployDir,
	})
	return errors.Wrapf(err, "failed to rebuild stack in %v", target.DeployDir)
}
