package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	webhookSource = "newsroom"

	// HeaderEvent carries Message.Event so receivers can route before decoding.
	HeaderEvent = "X-Newsroom-Event"
	// HeaderSignature is "sha256=" + hex HMAC-SHA256 of the body, sent when a
	// secret is configured.
	HeaderSignature = "X-Newsroom-Signature"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" env:"NOTIFY_WEBHOOK_URL"`
	Secret  string            `yaml:"secret" json:"-" env:"NOTIFY_WEBHOOK_SECRET"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// WebhookPayload is the JSON body posted for every message.
type WebhookPayload struct {
	Source string            `json:"source"`
	Event  Event             `json:"event"`
	Level  Level             `json:"level"`
	Title  string            `json:"title"`
	Text   string            `json:"text"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	SentAt time.Time         `json:"sentAt"`
}

// WebhookNotifier posts operator alerts as JSON to a webhook URL.
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

func (w *WebhookNotifier) payload(msg Message) WebhookPayload {
	level := msg.Level
	if level == "" {
		level = LevelInfo
	}
	event := msg.Event
	if event == "" {
		event = Event(level)
	}
	return WebhookPayload{
		Source: webhookSource,
		Event:  event,
		Level:  level,
		Title:  msg.Title,
		Text:   msg.Body,
		URL:    msg.URL,
		Fields: msg.Fields,
		SentAt: w.now().UTC(),
	}
}

// Sign returns the HeaderSignature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Send posts msg to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	p := w.payload(msg)
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(p.Event))
	if w.config.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(w.config.Secret, body))
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
