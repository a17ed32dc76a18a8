package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type pushPayload struct {
	Ref        string `json:"ref"`
	Zen        string `json:"zen"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

// handleWebhook accepts GitHub push events: it verifies the payload
// signature, resolves the repository's deployment chain and starts it
// asynchronously. The caller gets an immediate acknowledgement; the outcome
// arrives through the notifier.
func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	signature := c.Request().Header.Get("X-Hub-Signature-256")
	if s.config.WebhookSecret != "" && signature == "" {
		s.logger.Info("webhook rejected: missing signature header")
		return echo.NewHTTPError(http.StatusBadRequest, "Missing signature header")
	}
	if !VerifySignature(body, signature, s.config.WebhookSecret) {
		s.logger.Info("webhook rejected: invalid signature")
		s.notifier.NotifyDeployEvent("unknown", "unknown", model.EventFailed, "Invalid signature.")
		return echo.NewHTTPError(http.StatusForbidden, "Invalid signature")
	}

	payload, err := decodePushPayload(c.Request().Header.Get(echo.HeaderContentType), body)
	if err != nil {
		s.logger.Error(err, "failed to decode webhook payload")
		s.notifier.NotifyDeployEvent("unknown", "unknown", model.EventFailed, "Invalid payload.")
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}

	if c.Request().Header.Get("X-GitHub-Event") == "ping" || payload.Zen != "" {
		s.logger.Info("received ping event")
		return c.JSON(http.StatusOK, echo.Map{"message": "Ping successful.", "zen": payload.Zen})
	}

	repository := payload.Repository.FullName
	branch := branchFromRef(payload.Ref)
	s.logger.Info(fmt.Sprintf("received push for %q on branch %q", repository, branch))

	targets, ok := s.config.Deployments[repository]
	if !ok {
		detail := fmt.Sprintf("repository %q is not configured for deployment", repository)
		s.logger.Info(detail)
		s.notifier.NotifyDeployEvent(repository, branch, model.EventFailed, detail)
		return echo.NewHTTPError(http.StatusBadRequest, detail)
	}

	s.notifier.NotifyWebhookEvent("push", repository, branch, payload.Pusher.Name)
	s.registry.Submit(s.baseCtx, repository, branch, func(runCtx context.Context) model.ChainResult {
		return s.chain.Run(runCtx, repository, branch, targets)
	})
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": fmt.Sprintf("Deployment chain started for %v on branch %v.", repository, branch),
	})
}

// decodePushPayload accepts the two encodings GitHub sends: plain JSON and a
// form with the JSON in the payload field.
func decodePushPayload(contentType string, body []byte) (pushPayload, error) {
	var payload pushPayload
	switch {
	case strings.Contains(contentType, echo.MIMEApplicationJSON):
		err := json.Unmarshal(body, &payload)
		if err != nil {
			return pushPayload{}, err
		}
	case strings.Contains(contentType, echo.MIMEApplicationForm):
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return pushPayload{}, err
		}
		raw := form.Get("payload")
		if raw == "" {
			return pushPayload{}, fmt.Errorf("no payload parameter in form data")
		}
		err = json.Unmarshal([]byte(raw), &payload)
		if err != nil {
			return pushPayload{}, err
		}
	default:
		return pushPayload{}, fmt.Errorf("unsupported content type %q", contentType)
	}
	return payload, nil
}

func branchFromRef(ref string) string {
	if ref == "" {
		return ""
	}
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}
