package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
)

// Mailer sends transactional email
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, toName, resetLink string) error
}

// Client posts templated messages to a listmonk-style /api/tx endpoint
type Client struct {
	config config.EmailConfig
	http   *http.Client
	logger *logging.Logger
}

// New creates a mail client. With no base URL configured, messages are
// logged instead of sent.
func New(cfg config.EmailConfig, logger *logging.Logger) *Client {
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type txRequest struct {
	SubscriberEmail string            `json:"subscriber_email"`
	TemplateID      int               `json:"template_id"`
	Data            map[string]string `json:"data"`
	ContentType     string            `json:"content_type"`
}

// SendPasswordReset mails a password reset link
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, toName, resetLink string) error {
	if c.config.BaseURL == "" {
		c.logger.WithField("email", toEmail).Warnf("email not configured, reset link: %s", resetLink)
		return nil
	}

	return c.send(ctx, txRequest{
		SubscriberEmail: toEmail,
		TemplateID:      c.config.TemplateID,
		Data: map[string]string{
			"resetLink": resetLink,
			"name":      toName,
		},
		ContentType: "html",
	})
}

func (c *Client) send(ctx context.Context, body txRequest) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/tx", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.Username, c.config.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	return nil
}
