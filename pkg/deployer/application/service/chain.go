package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type Chain interface {
	Run(ctx context.Context, repository model.RepositoryID, branch string, targets []model.Target) model.ChainResult
}

func NewChain(logger applogger.Logger, deployer Deployer, notifier Notifier, abortOnError bool) Chain {
	return &chain{
		logger:       logger,
		deployer:     deployer,
		notifier:     notifier,
		abortOnError: abortOnError,
	}
}

type chain struct {
	logger       applogger.Logger
	deployer     Deployer
	notifier     Notifier
	abortOnError bool
}

// Run deploys the targets strictly in ascending key order. A failing target
// does not halt the chain unless abortOnError is set; later targets may rely
// on earlier ones, so targets are never processed in parallel. Cancellation is
// honored at target boundaries: commands already issued are left to their own
// context, no new target is started.
func (c chain) Run(ctx context.Context, repository model.RepositoryID, branch string, targets []model.Target) model.ChainResult {
	result := model.ChainResult{
		RunID:      uuid.NewString(),
		Repository: repository,
		Branch:     branch,
	}
	cancelled := false
	for _, target := range orderTargets(targets) {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		c.logger.Info(fmt.Sprintf("run %v: deploying %v for repository %q...", result.RunID, target.Key, repository))
		start := time.Now()
		outcome := c.deployer.Deploy(ctx, repository, branch, target)
		c.logger.Info(fmt.Sprintf("run %v: finished %v (%v) in %v", result.RunID, target.Key, outcome.Status, time.Since(start)))
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Failed() && c.abortOnError {
			c.logger.Info(fmt.Sprintf("run %v: aborting remaining targets after %v", result.RunID, target.Key))
			break
		}
	}
	// A run that already reached its last target reports truthfully even if
	// ctx was torn down moments later; only a skipped target marks it cancelled.
	result.Cancelled = cancelled
	c.notifyTerminal(result)
	return result
}

// A superseded run stays silent: the run that replaced it reports its own
// terminal status moments later.
func (c chain) notifyTerminal(result model.ChainResult) {
	if result.Cancelled {
		c.logger.Info(fmt.Sprintf("run %v for %q (%v) was cancelled", result.RunID, result.Repository, result.Branch))
		return
	}
	if detail, failed := result.FirstFailure(); failed {
		c.notifier.NotifyDeployEvent(result.Repository, result.Branch, model.EventFailed, detail)
		return
	}
	c.notifier.NotifyDeployEvent(result.Repository, result.Branch, model.EventSuccessful, "All servers deployed.")
}

func orderTargets(targets []model.Target) []model.Target {
	ordered := make([]model.Target, len(targets))
	copy(ordered, targets)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Key < ordered[j].Key
	})
	return ordered
}
