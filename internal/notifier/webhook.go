package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// WebhookConfig holds webhook configuration for the operations channel.
// The payload follows the Slack Block Kit shape, which Slack-compatible
// endpoints accept.
type WebhookConfig struct {
	URL string // incoming webhook URL
}

// Validate validates the webhook configuration.
func (c *WebhookConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// WebhookSender posts marketplace events to an operations channel.
type WebhookSender struct {
	config     WebhookConfig
	httpClient *http.Client
}

// NewWebhookSender creates a new webhook sender.
func NewWebhookSender(config WebhookConfig) (*WebhookSender, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}

	return &WebhookSender{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name returns "webhook".
func (s *WebhookSender) Name() string {
	return "webhook"
}

// Send posts one message to the configured endpoint.
func (s *WebhookSender) Send(ctx context.Context, msg *Message) error {
	payload := s.buildPayload(msg)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for the webhook sender.
func (s *WebhookSender) Close() error {
	return nil
}

// webhookMessage represents the webhook payload (Slack Block Kit shape).
type webhookMessage struct {
	Blocks []webhookBlock `json:"blocks"`
}

type webhookBlock struct {
	Type     string        `json:"type"`
	Text     *webhookText  `json:"text,omitempty"`
	Fields   []webhookText `json:"fields,omitempty"`
	Elements []webhookText `json:"elements,omitempty"`
}

type webhookText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// buildPayload builds the Block Kit payload for one event.
func (s *WebhookSender) buildPayload(msg *Message) webhookMessage {
	emoji := kindEmoji(msg.Kind)
	timestamp := msg.CreatedAt.Format("2006-01-02 15:04:05 MST")

	blocks := []webhookBlock{
		{
			Type: "header",
			Text: &webhookText{
				Type:  "plain_text",
				Text:  fmt.Sprintf("%s RFPHub: %s", emoji, msg.Title),
				Emoji: true,
			},
		},
		{
			Type: "section",
			Fields: []webhookText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Event:*\n%s", string(msg.Kind)),
				},
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Time:*\n%s", timestamp),
				},
			},
		},
		{
			Type: "section",
			Text: &webhookText{
				Type: "mrkdwn",
				Text: truncate(msg.Body, 500),
			},
		},
	}

	if msg.ReferenceID != "" {
		blocks = append(blocks, webhookBlock{
			Type: "context",
			Elements: []webhookText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("Reference: `%s`", msg.ReferenceID),
				},
			},
		})
	}

	return webhookMessage{Blocks: blocks}
}

// kindEmoji returns an emoji for the event kind.
func kindEmoji(kind models.NotificationType) string {
	switch kind {
	case models.NotifyRFPPublished:
		return "\U0001F7E2" // green circle
	case models.NotifyRFPClosed:
		return "\U0001F534" // red circle
	case models.NotifyNDAApproved, models.NotifyAccessGranted:
		return "\u2705" // check mark
	case models.NotifyNDARejected, models.NotifyAccessDenied:
		return "\u274C" // cross mark
	case models.NotifyQuestionAnswered:
		return "\U0001F4AC" // speech balloon
	default:
		return "\u26AA" // white circle
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
