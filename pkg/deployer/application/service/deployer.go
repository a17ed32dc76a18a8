package service

import (
	"context"
	"fmt"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type SourceProvider interface {
	Ensure(ctx context.Context, env Environment, target model.Target) error
	Pull(ctx context.Context, env Environment, target model.Target) (model.PullResult, error)
}

type ContainerService interface {
	Converge(ctx context.Context, env Environment, target model.Target, rebuild bool) error
}

type Notifier interface {
	NotifyDeployEvent(repository model.RepositoryID, branch string, status model.EventStatus, detail string)
}

type Deployer interface {
	Deploy(ctx context.Context, repository model.RepositoryID, branch string, target model.Target) model.TargetOutcome
}

func NewDeployer(
	logger applogger.Logger,
	opener EnvironmentOpener,
	sources SourceProvider,
	containers ContainerService,
	notifier Notifier,
) Deployer {
	return &deployer{
		logger:     logger,
		opener:     opener,
		sources:    sources,
		containers: containers,
		notifier:   notifier,
	}
}

type deployer struct {
	logger     applogger.Logger
	opener     EnvironmentOpener
	sources    SourceProvider
	containers ContainerService
	notifier   Notifier
}

// Deploy walks one target through the deployment state machine:
// branch gate, mode dispatch, sync, rebuild decision, post-deploy tasks.
// A failing step aborts the remaining steps for this target only.
func (d deployer) Deploy(ctx context.Context, repository model.RepositoryID, branch string, target model.Target) model.TargetOutcome {
	if branch != target.Branch {
		detail := fmt.Sprintf("push branch %q does not match %q, skipping %v", branch, target.Branch, target.Key)
		d.logger.Info(detail)
		d.notifier.NotifyDeployEvent(repository, branch, model.EventIgnored, detail)
		return model.TargetOutcome{Key: target.Key, Status: model.StatusSkippedBranch, Detail: detail}
	}

	if target.Mode != model.ModeLocal && target.Mode != model.ModeRemote {
		detail := fmt.Sprintf("unknown target %q for %v", target.Mode, target.Key)
		d.logger.Info(detail)
		d.notifier.NotifyDeployEvent(repository, branch, model.EventFailed, detail)
		return model.TargetOutcome{Key: target.Key, Status: model.StatusSkippedUnknownMode, Detail: detail}
	}

	env, err := d.opener.Open(ctx, target)
	if err != nil {
		return d.fail(repository, branch, target, err)
	}
	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			d.logger.Error(closeErr, fmt.Sprintf("failed to close %v environment for %v", target.Mode, target.Key))
		}
	}()

	if !target.TasksOnly {
		if err = d.sync(ctx, env, target); err != nil {
			return d.fail(repository, branch, target, err)
		}
	}

	for _, task := range target.Tasks {
		result, taskErr := env.Run(ctx, RunSpec{Command: task, WorkDir: target.DeployDir})
		if result.Stdout != "" {
			d.logger.Info(result.Stdout)
		}
		if taskErr != nil {
			d.logger.Error(taskErr, fmt.Sprintf("failed to run task %q on %v", task, target.Key))
			detail := fmt.Sprintf("task %q failed: %v", task, taskErr)
			d.notifier.NotifyDeployEvent(repository, branch, model.EventFailed, detail)
			return model.TargetOutcome{Key: target.Key, Status: model.StatusFailed, Detail: detail}
		}
	}

	detail := fmt.Sprintf("local deployment of %v completed", target.Key)
	if target.Mode == model.ModeRemote && target.Remote != nil {
		detail = fmt.Sprintf("remote server %v updated", target.Remote.Host)
	}
	d.notifier.NotifyDeployEvent(repository, branch, model.EventSuccessful, detail)
	return model.TargetOutcome{Key: target.Key, Status: model.StatusSucceeded, Detail: detail}
}

func (d deployer) sync(ctx context.Context, env Environment, target model.Target) error {
	err := d.sources.Ensure(ctx, env, target)
	if err != nil {
		return err
	}
	pull, err := d.sources.Pull(ctx, env, target)
	if err != nil {
		return err
	}
	if pull.Output != "" {
		d.logger.Debug(pull.Output)
	}
	rebuild := target.ForceRebuild || pull.Changed
	if !rebuild {
		d.logger.Info(fmt.Sprintf("no changes found on %v, skipping image rebuild", target.Key))
	}
	return d.containers.Converge(ctx, env, target, rebuild)
}

func (d deployer) fail(repository model.RepositoryID, branch string, target model.Target, err error) model.TargetOutcome {
	d.logger.Error(err, fmt.Sprintf("deployment failed on %v", target.Key))
	d.notifier.NotifyDeployEvent(repository, branch, model.EventFailed, err.Error())
	return model.TargetOutcome{Key: target.Key, Status: model.StatusFailed, Detail: err.Error()}
}
