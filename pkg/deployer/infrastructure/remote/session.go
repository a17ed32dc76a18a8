package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"golang.org/x/crypto/ssh"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/command"
)

const (
	connectTimeout = 15 * time.Second
	detectTimeout  = 5 * time.Second
)

// Session is the remote execution environment for one target deployment.
// Commands run over a shared SSH connection, one ssh session per command.
// A Session is used by a single chain run and is not safe for concurrent use.
type Session struct {
	logger  applogger.Logger
	client  *ssh.Client
	host    string
	markers []string

	composeBin string
	composeErr error
	osName     string
	osDetected bool
}

// Open authenticates with the target's private key and connects. Credential
// problems fail before dialing. The caller must Close the session exactly
// once, on error paths included.
func Open(_ context.Context, logger applogger.Logger, config model.RemoteConfig) (*Session, error) {
	signer, err := LoadPrivateKey(config.KeyType, config.KeyPath)
	if err != nil {
		return nil, err
	}
	port := config.Port
	if port == 0 {
		port = 22
	}
	address := net.JoinHostPort(config.Host, strconv.Itoa(port))
	clientConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // nolint:gosec // deployment hosts are declared in config, first contact is accepted
		Timeout:         connectTimeout,
	}
	client, err := ssh.Dial("tcp", address, clientConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %v as %v", address, config.User)
	}
	logger.Info(fmt.Sprintf("ssh connected to %v as %v", config.Host, config.User))
	return &Session{
		logger:  logger,
		client:  client,
		host:    config.Host,
		markers: command.DefaultBenignMarkers,
	}, nil
}

func (s *Session) Run(ctx context.Context, spec service.RunSpec) (model.CommandResult, error) {
	if spec.Command == "" {
		return model.CommandResult{}, errors.New("command can not be empty")
	}
	cmdText := spec.Command
	if spec.WorkDir != "" {
		cmdText = fmt.Sprintf("cd %q && %s", spec.WorkDir, spec.Command)
	}
	sess, err := s.client.NewSession()
	if err != nil {
		return model.CommandResult{}, errors.Wrapf(err, "failed to open ssh session on %v", s.host)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	s.logger.Debug(fmt.Sprintf("run %q on %v", cmdText, s.host))
	done := make(chan error, 1)
	go func() {
		done <- sess.Run(cmdText)
	}()
	select {
	case <-runCtx.Done():
		// closing the session unblocks the remote command wait
		_ = sess.Close()
		<-done
		return model.CommandResult{}, errors.Wrapf(runCtx.Err(), "command %q did not finish on %v", spec.Command, s.host)
	case err = <-done:
	}

	result := model.CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return result, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		if spec.AllowBenign && command.MatchesBenign(result.Stderr, s.markers) {
			result.Benign = true
			s.logger.Info(fmt.Sprintf("ignoring benign error while running %q on %v: %v", spec.Command, s.host, result.Stderr))
			return result, nil
		}
		return result, errors.Errorf("command %q failed with exit code %d on %v: %s", spec.Command, result.ExitCode, s.host, result.Stderr)
	}
	return result, errors.Wrapf(err, "failed to run command %q on %v", spec.Command, s.host)
}

func (s *Session) DirExists(ctx context.Context, path string) (bool, error) {
	checkCmd := fmt.Sprintf(`[ -d %q ] && echo "EXISTS" || echo "NOT_EXISTS"`, path)
	result, err := s.Run(ctx, service.RunSpec{Command: checkCmd, Timeout: detectTimeout})
	if err != nil {
		return false, errors.Wrapf(err, "failed to check directory %v on %v", path, s.host)
	}
	return result.Stdout == "EXISTS", nil
}

func (s *Session) MakeDirAll(ctx context.Context, path string) error {
	_, err := s.Run(ctx, service.RunSpec{Command: fmt.Sprintf("mkdir -p %q", path)})
	return errors.Wrapf(err, "failed to create directory %v on %v", path, s.host)
}

// ComposeBinary probes for the compose plugin, then the standalone binary.
// Detection runs once per session; finding neither is fatal for the target.
func (s *Session) ComposeBinary(ctx context.Context) (string, error) {
	if s.composeBin != "" || s.composeErr != nil {
		return s.composeBin, s.composeErr
	}
	if _, err := s.Run(ctx, service.RunSpec{Command: "which docker", Timeout: detectTimeout}); err == nil {
		result, versionErr := s.Run(ctx, service.RunSpec{Command: "docker compose version", Timeout: detectTimeout})
		if versionErr == nil && strings.Contains(result.Stdout, "Docker Compose version") {
			s.composeBin = "docker compose"
			return s.composeBin, nil
		}
	}
	if _, err := s.Run(ctx, service.RunSpec{Command: "which docker-compose", Timeout: detectTimeout}); err == nil {
		s.composeBin = "docker-compose"
		return s.composeBin, nil
	}
	s.composeErr = errors.Errorf(`neither "docker compose" nor "docker-compose" found on %v`, s.host)
	return "", s.composeErr
}

// ElevationPrefix returns "sudo " when the target demands it or when the
// remote OS reports as Linux.
func (s *Session) ElevationPrefix(ctx context.Context, forced bool) (string, error) {
	if forced {
		return "sudo ", nil
	}
	if !s.osDetected {
		result, err := s.Run(ctx, service.RunSpec{Command: "uname -s", Timeout: detectTimeout})
		if err != nil {
			return "", errors.Wrapf(err, "failed to detect OS on %v", s.host)
		}
		s.osName = result.Stdout
		s.osDetected = true
	}
	if strings.Contains(s.osName, "Linux") {
		return "sudo ", nil
	}
	return "", nil
}

func (s *Session) Close() error {
	err := s.client.Close()
	s.logger.Info(fmt.Sprintf("ssh disconnected from %v", s.host))
	return errors.Wrapf(err, "failed to close ssh connection to %v", s.host)
}
