package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
)

// Repository keeps a target's working directory in sync with its origin,
// through whichever execution environment the target uses.
type Repository struct {
	logger applogger.Logger
}

func NewRepository(logger applogger.Logger) *Repository {
	return &Repository{logger: logger}
}

// Ensure verifies the deploy directory exists, cloning it when the target
// allows directory creation. A missing directory without create permission is
// a configuration error.
func (r *Repository) Ensure(ctx context.Context, env service.Environment, target model.Target) error {
	exists, err := env.DirExists(ctx, target.DeployDir)
	if err != nil {
		return errors.Wrapf(err, "failed to check deploy directory %v", target.DeployDir)
	}
	if exists {
		r.logger.Debug(fmt.Sprintf("deploy directory %q already exists", target.DeployDir))
		return nil
	}
	if !target.CreateDir {
		return errors.Errorf("directory %q does not exist, set create_dir: true to clone the repository into it", target.DeployDir)
	}
	if target.CloneURL == "" {
		return errors.Errorf("clone_url is not set, can not clone into %q", target.DeployDir)
	}
	parent := path.Dir(target.DeployDir)
	if parent != "" && parent != "." {
		if err = env.MakeDirAll(ctx, parent); err != nil {
			return errors.Wrapf(err, "failed to create parent directory %v", parent)
		}
	}
	r.logger.Info(fmt.Sprintf("deploy directory %q not found, cloning %v...", target.DeployDir, target.CloneURL))
	_, err = env.Run(ctx, service.RunSpec{
		Command: fmt.Sprintf("git clone --branch %s %s %q", target.Branch, target.CloneURL, target.DeployDir),
		WorkDir: parent,
	})
	return errors.Wrapf(err, "failed to clone %v into %v", target.CloneURL, target.DeployDir)
}

// Pull fetches the latest commits for the target's branch and reports whether
// anything changed.
func (r *Repository) Pull(ctx context.Context, env service.Environment, target model.Target) (model.PullResult, error) {
	result, err := env.Run(ctx, service.RunSpec{
		Command: "git pull origin " + target.Branch,
		WorkDir: target.DeployDir,
	})
	if err != nil {
		return model.PullResult{}, errors.Wrapf(err, "failed to pull branch %v in %v", target.Branch, target.DeployDir)
	}
	return model.PullResult{
		Changed: !pullIndicatesNoChange(result.Stdout),
		Output:  result.Stdout,
	}, nil
}

// pullIndicatesNoChange reports whether git's output says the working tree
// was already at the latest commit. Kept as a named predicate so the string
// match can be swapped for a before/after hash comparison in one place.
func pullIndicatesNoChange(output string) bool {
	return strings.Contains(output, "Already up to date.")
}
