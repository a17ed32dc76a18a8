package main

import (
	stdcontext "context"

	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/dependency"
)

// check verifies that local targets have the tools they need.
func check(ctx stdcontext.Context) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	local := dependencyContainer.LocalEnvironment()
	result, err := local.Run(ctx, service.RunSpec{Command: "git --version"})
	if err != nil {
		return err
	}
	logger := dependencyContainer.Logger()
	logger.Info(result.Stdout)
	composeBin, err := local.ComposeBinary(ctx)
	if err != nil {
		return err
	}
	logger.Info("compose binary: " + composeBin)
	return nil
}
