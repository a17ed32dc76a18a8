package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type deployRequest struct {
	RepositoryFullName string `json:"repository_full_name"`
	Branch             string `json:"branch"`
}

// handleDeploy triggers the chain manually and waits for it, so the caller
// gets the failure detail in the response instead of only through the
// notifier. The run still goes through the registry and supersedes any
// webhook-triggered run for the same key.
func (s *Server) handleDeploy(c echo.Context) error {
	var request deployRequest
	err := c.Bind(&request)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	repository := request.RepositoryFullName
	branch := request.Branch
	s.logger.Info(fmt.Sprintf("manual deployment triggered for %q on branch %q", repository, branch))

	targets, ok := s.config.Deployments[repository]
	if !ok {
		detail := fmt.Sprintf("repository %q is not configured for deployment", repository)
		s.notifier.NotifyDeployEvent(repository, branch, model.EventFailed, detail)
		return echo.NewHTTPError(http.StatusBadRequest, detail)
	}

	handle := s.registry.Submit(s.baseCtx, repository, branch, func(runCtx context.Context) model.ChainResult {
		return s.chain.Run(runCtx, repository, branch, targets)
	})
	select {
	case <-handle.Done():
	case <-c.Request().Context().Done():
		// caller went away; the run keeps going and reports via the notifier
		return c.JSON(http.StatusAccepted, echo.Map{
			"message": fmt.Sprintf("Deployment chain still running for %v on branch %v.", repository, branch),
		})
	}

	result := handle.Result()
	if result.Cancelled {
		return c.JSON(http.StatusConflict, echo.Map{
			"detail": fmt.Sprintf("Deployment chain for %v on branch %v was superseded by a newer trigger.", repository, branch),
		})
	}
	if detail, failed := result.FirstFailure(); failed {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": detail})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Deployment chain completed for %v on branch %v.", repository, branch),
	})
}
