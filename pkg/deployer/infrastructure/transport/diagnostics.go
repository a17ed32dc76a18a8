package transport

import (
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
)

// handleTestCommand reports the tool versions available to local targets.
func (s *Server) handleTestCommand(c echo.Context) error {
	ctx := c.Request().Context()
	gitResult, err := s.local.Run(ctx, service.RunSpec{Command: "git --version"})
	if err != nil {
		s.logger.Error(err, "test command failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	composeBin, err := s.local.ComposeBinary(ctx)
	if err != nil {
		s.logger.Error(err, "test command failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	composeResult, err := s.local.Run(ctx, service.RunSpec{Command: composeBin + " version"})
	if err != nil {
		s.logger.Error(err, "test command failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"git_version":            gitResult.Stdout,
		"docker_compose_version": composeResult.Stdout,
	})
}

// handleListFiles lists the deploy directory of a repository's first local
// target matching the requested branch.
func (s *Server) handleListFiles(c echo.Context) error {
	repository := c.QueryParam("repository_full_name")
	branch := c.QueryParam("branch")
	s.logger.Info(fmt.Sprintf("listing files for %q on branch %q", repository, branch))

	targets, ok := s.config.Deployments[repository]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Repository not found in configuration")
	}
	for _, target := range targets {
		if branch != "" && target.Branch != branch {
			continue
		}
		entries, err := os.ReadDir(target.DeployDir)
		if err != nil {
			s.logger.Error(err, "failed to list deploy directory")
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		files := make([]string, 0, len(entries))
		for _, entry := range entries {
			files = append(files, entry.Name())
		}
		return c.JSON(http.StatusOK, echo.Map{"files": files})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("No target of %v deploys branch %q.", repository, branch),
	})
}
