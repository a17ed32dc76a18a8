package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	gomail "gopkg.in/gomail.v2"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
	"github.com/tss-calculator/deployer/pkg/deployer/infrastructure/config"
)

// Manager delivers deployment events to Slack and email. Both channels are
// optional; delivery failures are logged and never propagate into the chain.
type Manager struct {
	logger     applogger.Logger
	settings   config.Notifications
	httpClient *http.Client
}

func NewManager(logger applogger.Logger, settings config.Notifications) *Manager {
	return &Manager{
		logger:     logger,
		settings:   settings,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Manager) NotifyDeployEvent(repository model.RepositoryID, branch string, status model.EventStatus, detail string) {
	message := fmt.Sprintf(
		"🚀 Deploy Event\n- Repository: %v\n- Branch: %v\n- Status: %v\n- Details: %v",
		repository, branch, status, detail,
	)
	m.sendSlack(message)
	m.sendEmail(fmt.Sprintf("Deploy Event: %v on %v", status, repository), message)
}

func (m *Manager) NotifyWebhookEvent(event, repository, branch, pusher string) {
	message := fmt.Sprintf(
		"🔔 Webhook Event\n- Repository: %v\n- Branch: %v\n- Pusher: %v\n- Event: %v",
		repository, branch, pusher, event,
	)
	m.sendSlack(message)
	m.sendEmail(fmt.Sprintf("Webhook Event: %v on %v", event, repository), message)
}

func (m *Manager) sendSlack(message string) {
	if m.settings.SlackWebhookURL == "" {
		m.logger.Debug("slack webhook url not configured, skipping slack notification")
		return
	}
	err := m.postSlack(message)
	if err != nil {
		m.logger.Error(err, "failed to send slack message")
		return
	}
	m.logger.Debug("slack message sent")
}

func (m *Manager) postSlack(message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return errors.Wrap(err, "failed to marshal slack payload")
	}
	response, err := m.httpClient.Post(m.settings.SlackWebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to post to slack webhook")
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return errors.Errorf("slack webhook returned status %v", response.StatusCode)
	}
	return nil
}

func (m *Manager) sendEmail(subject, body string) {
	email := m.settings.Email
	if email.SMTPServer == "" || len(email.Recipients) == 0 {
		m.logger.Debug("email notifications not configured, skipping email notification")
		return
	}
	sender := email.SenderEmail
	if sender == "" {
		sender = email.Username
	}

	message := gomail.NewMessage()
	message.SetHeader("From", sender)
	message.SetHeader("To", email.Recipients...)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	dialer := gomail.NewDialer(email.SMTPServer, email.SMTPPort, email.Username, email.Password)
	// implicit TLS on the SMTPS port, STARTTLS otherwise
	dialer.SSL = email.SMTPPort == 465

	err := dialer.DialAndSend(message)
	if err != nil {
		m.logger.Error(err, fmt.Sprintf("failed to send email to %v", strings.Join(email.Recipients, ", ")))
		return
	}
	m.logger.Debug(fmt.Sprintf("email sent to %v", strings.Join(email.Recipients, ", ")))
}
