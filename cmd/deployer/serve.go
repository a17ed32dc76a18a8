package main

import (
	stdcontext "context"

	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/dependency"
)

func serve(ctx stdcontext.Context, address string) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	return dependencyContainer.Server().Run(ctx, address)
}
