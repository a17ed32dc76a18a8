package service

import (
	"context"
	"fmt"
	"sync"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type runKey struct {
	repository model.RepositoryID
	branch     string
}

// Handle is the cancellable reference to one submitted chain run.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	result model.ChainResult
}

func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result is valid once Done is closed.
func (h *Handle) Result() model.ChainResult {
	return h.result
}

type Work func(ctx context.Context) model.ChainResult

// Registry tracks the single in-flight chain run per (repository, branch) key.
// Submitting a run for a key with an active run cancels the previous run
// cooperatively; the cancellation takes effect at the chain's next target
// boundary. The run table is the only shared mutable state in the core.
type Registry struct {
	logger applogger.Logger

	mu   sync.Mutex
	runs map[runKey]*Handle
}

func NewRegistry(logger applogger.Logger) *Registry {
	return &Registry{
		logger: logger,
		runs:   make(map[runKey]*Handle),
	}
}

// Submit cancels any run already active for (repository, branch), registers
// the new run and executes it on its own goroutine so blocking command
// execution never holds up the caller. ctx is the process lifecycle context,
// not the triggering request's.
func (r *Registry) Submit(ctx context.Context, repository model.RepositoryID, branch string, work Work) *Handle {
	key := runKey{repository: repository, branch: branch}
	runCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.cancelExistingLocked(key)
	r.runs[key] = handle
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			if r.runs[key] == handle {
				delete(r.runs, key)
			}
			r.mu.Unlock()
			cancel()
			close(handle.done)
		}()
		handle.result = work(runCtx)
	}()
	return handle
}

// CancelExisting cancels the active run for the key, if any.
func (r *Registry) CancelExisting(repository model.RepositoryID, branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelExistingLocked(runKey{repository: repository, branch: branch})
}

// Active reports whether a run for the key is still registered.
func (r *Registry) Active(repository model.RepositoryID, branch string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[runKey{repository: repository, branch: branch}]
	return ok
}

func (r *Registry) cancelExistingLocked(key runKey) {
	previous, ok := r.runs[key]
	if !ok {
		return
	}
	r.logger.Info(fmt.Sprintf("superseding in-flight run for %q (%v)", key.repository, key.branch))
	previous.cancel()
	delete(r.runs, key)
}
