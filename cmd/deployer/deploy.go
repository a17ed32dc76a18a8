package main

import (
	stdcontext "context"
	"errors"
	"fmt"

	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/dependency"
)

func deploy(ctx stdcontext.Context, repository, branch string) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	targets, ok := dependencyContainer.Config().Deployments[repository]
	if !ok {
		return fmt.Errorf("repository %q is not configured for deployment", repository)
	}
	result := dependencyContainer.Chain().Run(ctx, repository, branch, targets)
	if detail, failed := result.FirstFailure(); failed {
		return errors.New(detail)
	}
	return nil
}
