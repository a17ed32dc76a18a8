package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/application/service"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/command"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
)

type chainCall struct {
	repository model.RepositoryID
	branch     string
	targets    []model.Target
}

type fakeChain struct {
	mu     sync.Mutex
	calls  []chainCall
	result model.ChainResult
	ran    chan struct{}
}

func newFakeChain(result model.ChainResult) *fakeChain {
	return &fakeChain{result: result, ran: make(chan struct{}, 8)}
}

func (f *fakeChain) Run(_ context.Context, repository model.RepositoryID, branch string, targets []model.Target) model.ChainResult {
	f.mu.Lock()
	f.calls = append(f.calls, chainCall{repository: repository, branch: branch, targets: targets})
	f.mu.Unlock()
	f.ran <- struct{}{}
	return f.result
}

func (f *fakeChain) recorded() []chainCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chainCall(nil), f.calls...)
}

func (f *fakeChain) waitForRun(t *testing.T) {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("deployment chain was not started")
	}
}

type notifiedEvent struct {
	kind       string
	repository model.RepositoryID
	branch     string
	status     model.EventStatus
	detail     string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

func (f *fakeNotifier) NotifyDeployEvent(repository model.RepositoryID, branch string, status model.EventStatus, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notifiedEvent{kind: "deploy", repository: repository, branch: branch, status: status, detail: detail})
}

func (f *fakeNotifier) NotifyWebhookEvent(event, repository, branch, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notifiedEvent{kind: event, repository: repository, branch: branch})
}

func (f *fakeNotifier) recorded() []notifiedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifiedEvent(nil), f.events...)
}

type serverFixture struct {
	server   *Server
	chain    *fakeChain
	notifier *fakeNotifier
}

func newServerFixture(cfg config.Config, result model.ChainResult) *serverFixture {
	log := logger.NewTextLogger()
	chain := newFakeChain(result)
	notifier := &fakeNotifier{}
	return &serverFixture{
		server: NewServer(
			log,
			cfg,
			chain,
			service.NewRegistry(log),
			notifier,
			command.NewLocalEnvironment(log),
		),
		chain:    chain,
		notifier: notifier,
	}
}

func (f *serverFixture) do(request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	f.server.echo.ServeHTTP(recorder, request)
	return recorder
}

func webhookConfig(secret string) config.Config {
	return config.Config{
		WebhookSecret: secret,
		Deployments: map[model.RepositoryID][]model.Target{
			"acme/app": {
				{Key: "server1", Mode: model.ModeLocal, Branch: "main", DeployDir: "/opt/deploy/app"},
			},
		},
	}
}

func postWebhook(body, signature, contentType, event string) *http.Request {
	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	request.Header.Set(echo.HeaderContentType, contentType)
	if signature != "" {
		request.Header.Set("X-Hub-Signature-256", signature)
	}
	if event != "" {
		request.Header.Set("X-GitHub-Event", event)
	}
	return request
}

func TestWebhookPing(t *testing.T) {
	fixture := newServerFixture(webhookConfig("hook-secret"), model.ChainResult{})
	body := `{"zen":"Keep it logically awesome."}`

	recorder := fixture.do(postWebhook(body, signBody([]byte(body), "hook-secret"), echo.MIMEApplicationJSON, "ping"))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Ping successful.")
	assert.Empty(t, fixture.chain.recorded())
}

func TestWebhookMissingSignature(t *testing.T) {
	fixture := newServerFixture(webhookConfig("hook-secret"), model.ChainResult{})
	body := `{"ref":"refs/heads/main"}`

	recorder := fixture.do(postWebhook(body, "", echo.MIMEApplicationJSON, "push"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Missing signature header")
}

func TestWebhookInvalidSignature(t *testing.T) {
	fixture := newServerFixture(webhookConfig("hook-secret"), model.ChainResult{})
	body := `{"ref":"refs/heads/main"}`

	recorder := fixture.do(postWebhook(body, signBody([]byte(body), "other-secret"), echo.MIMEApplicationJSON, "push"))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Empty(t, fixture.chain.recorded())
	events := fixture.notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventFailed, events[0].status)
}

func TestWebhookUnsupportedContentType(t *testing.T) {
	fixture := newServerFixture(webhookConfig(""), model.ChainResult{})

	recorder := fixture.do(postWebhook("ref=refs/heads/main", "", echo.MIMETextPlain, "push"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid payload")
}

func TestWebhookUnknownRepository(t *testing.T) {
	fixture := newServerFixture(webhookConfig(""), model.ChainResult{})
	body := `{"ref":"refs/heads/main","repository":{"full_name":"acme/unknown"}}`

	recorder := fixture.do(postWebhook(body, "", echo.MIMEApplicationJSON, "push"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "not configured for deployment")
	assert.Empty(t, fixture.chain.recorded())
	events := fixture.notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventFailed, events[0].status)
	assert.Equal(t, "acme/unknown", events[0].repository)
}

func TestWebhookPushStartsChain(t *testing.T) {
	fixture := newServerFixture(webhookConfig("hook-secret"), model.ChainResult{})
	body := `{"ref":"refs/heads/main","repository":{"full_name":"acme/app"},"pusher":{"name":"octocat"}}`

	recorder := fixture.do(postWebhook(body, signBody([]byte(body), "hook-secret"), echo.MIMEApplicationJSON, "push"))

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	fixture.chain.waitForRun(t)
	calls := fixture.chain.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "acme/app", calls[0].repository)
	assert.Equal(t, "main", calls[0].branch)
	require.Len(t, calls[0].targets, 1)
	assert.Equal(t, model.TargetKey("server1"), calls[0].targets[0].Key)
	events := fixture.notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "push", events[0].kind)
}

func TestWebhookFormEncodedPayload(t *testing.T) {
	fixture := newServerFixture(webhookConfig(""), model.ChainResult{})
	payload := `{"ref":"refs/heads/main","repository":{"full_name":"acme/app"}}`
	body := url.Values{"payload": []string{payload}}.Encode()

	recorder := fixture.do(postWebhook(body, "", echo.MIMEApplicationForm, "push"))

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	fixture.chain.waitForRun(t)
	calls := fixture.chain.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "acme/app", calls[0].repository)
}

func TestBranchFromRef(t *testing.T) {
	assert.Equal(t, "main", branchFromRef("refs/heads/main"))
	assert.Equal(t, "v1.0", branchFromRef("refs/tags/v1.0"))
	assert.Equal(t, "", branchFromRef(""))
}

func TestHealth(t *testing.T) {
	fixture := newServerFixture(webhookConfig(""), model.ChainResult{})

	recorder := fixture.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "OK")
}
