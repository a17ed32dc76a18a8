package dependency

import (
	"context"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/command"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/remote"
)

func newEnvironmentOpener(logger applogger.Logger, local *command.LocalEnvironment) service.EnvironmentOpener {
	return &environmentOpener{
		logger: logger,
		local:  local,
	}
}

type environmentOpener struct {
	logger applogger.Logger
	local  *command.LocalEnvironment
}

func (o *environmentOpener) Open(ctx context.Context, target model.Target) (service.Environment, error) {
	switch target.Mode {
	case model.ModeLocal:
		return o.local, nil
	case model.ModeRemote:
		if target.Remote == nil {
			return nil, errors.Errorf("remote connection settings missing for %v", target.Key)
		}
		return remote.Open(ctx, o.logger, *target.Remote)
	}
	return nil, errors.Errorf("unknown target mode %q for %v", target.Mode, target.Key)
}
