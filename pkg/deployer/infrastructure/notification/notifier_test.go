package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
)

func TestNotifyDeployEventPostsToSlack(t *testing.T) {
	var received map[string]string
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()
	manager := NewManager(logger.NewTextLogger(), config.Notifications{SlackWebhookURL: slack.URL})

	manager.NotifyDeployEvent("acme/app", "main", model.EventSuccessful, "All servers deployed.")

	require.NotNil(t, received)
	assert.Contains(t, received["text"], "acme/app")
	assert.Contains(t, received["text"], "main")
	assert.Contains(t, received["text"], "All servers deployed.")
}

func TestNotifyWebhookEventPostsToSlack(t *testing.T) {
	var received map[string]string
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()
	manager := NewManager(logger.NewTextLogger(), config.Notifications{SlackWebhookURL: slack.URL})

	manager.NotifyWebhookEvent("push", "acme/app", "main", "octocat")

	require.NotNil(t, received)
	assert.Contains(t, received["text"], "push")
	assert.Contains(t, received["text"], "octocat")
}

func TestNotifyDeployEventSurvivesSlackFailure(t *testing.T) {
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slack.Close()
	manager := NewManager(logger.NewTextLogger(), config.Notifications{SlackWebhookURL: slack.URL})

	// delivery failures are logged, not propagated
	manager.NotifyDeployEvent("acme/app", "main", model.EventFailed, "git pull failed on server1")
}

func TestNotifyDeployEventWithoutChannelsConfigured(t *testing.T) {
	manager := NewManager(logger.NewTextLogger(), config.Notifications{})

	manager.NotifyDeployEvent("acme/app", "main", model.EventIgnored, "branch mismatch")
}
