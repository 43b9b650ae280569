// Package notify delivers formatted messages to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"slackbrew/internal/domain"
)

const botUsername = "Untappd"

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes any <...> tag from text, keeping the inner text.
func StripHTML(text string) string {
	return htmlTag.ReplaceAllString(text, "")
}

// Config holds the webhook endpoint settings.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

// Slack posts notification messages to an incoming-webhook URL.
type Slack struct {
	httpClient *http.Client
	webhookURL string
	logger     *slog.Logger
}

// New creates a Slack notifier. The webhook POST is bounded by the
// configured timeout so a hung endpoint cannot stall the run forever.
func New(cfg Config, logger *slog.Logger) *Slack {
	return &Slack{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		webhookURL: cfg.WebhookURL,
		logger:     logger.With("notifier", "slack"),
	}
}

type payload struct {
	IconURL     string       `json:"icon_url"`
	Username    string       `json:"username"`
	Text        *string      `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	ThumbURL string `json:"thumb_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Send serializes the message into the webhook payload shape for its kind
// and posts it. Any failure maps to domain.ErrNotify and ends the run;
// messages already delivered stay delivered.
func (s *Slack) Send(ctx context.Context, msg domain.Message) error {
	p := payload{
		IconURL:  msg.IconURL,
		Username: botUsername,
		Text:     &msg.Text,
	}

	switch msg.Kind {
	case domain.MessageBadge:
		p.Attachments = []attachment{{
			Title:    msg.Title,
			Text:     StripHTML(msg.Text),
			ThumbURL: msg.ThumbURL,
		}}
		p.Text = nil
	case domain.MessagePhoto:
		p.Attachments = []attachment{{
			Title:    msg.Title,
			ImageURL: msg.ImageURL,
		}}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", domain.ErrNotify, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrNotify, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotify, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: webhook returned status %d", domain.ErrNotify, resp.StatusCode)
	}

	s.logger.Debug("sent message", "kind", msg.Kind)
	return nil
}
