package service

import (
	"context"
	"time"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

// RunSpec describes one shell command to execute in an environment.
type RunSpec struct {
	Command     string
	WorkDir     string
	Timeout     time.Duration
	AllowBenign bool
}

// Environment is the execution strategy for one deployment target. Local and
// remote implementations share the same CommandResult contract so the rest of
// the deployment logic never branches on where a command runs.
type Environment interface {
	Run(ctx context.Context, spec RunSpec) (model.CommandResult, error)
	DirExists(ctx context.Context, path string) (bool, error)
	MakeDirAll(ctx context.Context, path string) error
	ComposeBinary(ctx context.Context) (string, error)
	ElevationPrefix(ctx context.Context, forced bool) (string, error)
	Close() error
}

// EnvironmentOpener dispatches a target to its execution strategy. Opening a
// remote environment establishes the SSH connection; the caller owns Close.
type EnvironmentOpener interface {
	Open(ctx context.Context, target model.Target) (Environment, error)
}
