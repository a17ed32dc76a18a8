package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
)

// detectTimeout bounds the compose binary probe commands.
const detectTimeout = 5 * time.Second

// LocalEnvironment executes deployment commands on this host through the
// shell. One instance is shared by all chain runs, so the detection cache is
// guarded; Close is a no-op.
type LocalEnvironment struct {
	logger  applogger.Logger
	markers []string

	composeOnce sync.Once
	composeBin  string
	composeErr  error
}

func NewLocalEnvironment(logger applogger.Logger) *LocalEnvironment {
	return &LocalEnvironment{
		logger:  logger,
		markers: DefaultBenignMarkers,
	}
}

func (e *LocalEnvironment) Run(ctx context.Context, spec service.RunSpec) (model.CommandResult, error) {
	if spec.Command == "" {
		return model.CommandResult{}, errors.New("command can not be empty")
	}
	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	// nolint:gosec
	cmd := exec.CommandContext(runCtx, "sh", "-c", spec.Command)
	cmd.Dir = spec.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug(fmt.Sprintf("run %q in %q", spec.Command, spec.WorkDir))
	err := cmd.Run()
	result := model.CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return result, nil
	}
	if runCtx.Err() != nil {
		return result, fmt.Errorf("command %q did not finish: %w", spec.Command, runCtx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if spec.AllowBenign && MatchesBenign(result.Stderr, e.markers) {
			result.Benign = true
			e.logger.Info(fmt.Sprintf("ignoring benign error while running %q: %v", spec.Command, result.Stderr))
			return result, nil
		}
		return result, fmt.Errorf("command %q failed with exit code %d: %s", spec.Command, result.ExitCode, result.Stderr)
	}
	return result, fmt.Errorf("failed to run command %q: %w", spec.Command, err)
}

func (e *LocalEnvironment) DirExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (e *LocalEnvironment) MakeDirAll(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

// ComposeBinary detects whether this host runs the compose plugin or the
// standalone binary. Detection runs once for the environment's lifetime, even
// when concurrent chain runs hit a cold cache.
func (e *LocalEnvironment) ComposeBinary(ctx context.Context) (string, error) {
	e.composeOnce.Do(func() {
		e.composeBin, e.composeErr = e.detectComposeBinary(ctx)
	})
	return e.composeBin, e.composeErr
}

func (e *LocalEnvironment) detectComposeBinary(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("docker"); err == nil {
		result, runErr := e.Run(ctx, service.RunSpec{Command: "docker compose version", Timeout: detectTimeout})
		if runErr == nil && strings.Contains(result.Stdout, "Docker Compose version") {
			return "docker compose", nil
		}
	}
	if _, err := exec.LookPath("docker-compose"); err == nil {
		return "docker-compose", nil
	}
	return "", errors.New(`neither "docker compose" nor "docker-compose" found on this host`)
}

func (e *LocalEnvironment) ElevationPrefix(_ context.Context, forced bool) (string, error) {
	if forced || runtime.GOOS == "linux" {
		return "sudo ", nil
	}
	return "", nil
}

func (e *LocalEnvironment) Close() error {
	return nil
}
