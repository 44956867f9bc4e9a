// Package notify delivers operator alerts to webhook and Telegram channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// Level tags how urgent a message is.
type Level string

const (
	LevelInfo  Level = "info"
	LevelAlert Level = "alert"
)

// Event names what happened, for receivers that route on it.
type Event string

const (
	EventDeadLetter Event = "queue.dead_lettered"
	EventRunSummary Event = "rewrite.published"
)

// Message represents a notification message. Fields carries structured
// context such as the queue item id and attempt count.
type Message struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Level  Level             `json:"level"`
	Event  Event             `json:"event,omitempty"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Config selects which channels are active. Empty fields disable a channel.
type Config struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// Dispatcher fans a message out to every registered channel.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		logger:    slog.Default(),
	}
}

// FromConfig registers a notifier for each configured channel.
func FromConfig(cfg Config) *Dispatcher {
	d := NewDispatcher()
	if cfg.Webhook.URL != "" {
		d.Register(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChannelID != "" {
		d.Register(NewTelegramNotifier(cfg.Telegram))
	}
	return d
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Enabled reports whether any channel is registered.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// Notify sends msg to all registered channels in name order. A failing
// channel does not stop the others. With no channels it does nothing.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	if !d.Enabled() {
		return nil
	}
	if msg.Level == "" {
		msg.Level = LevelInfo
	}

	channels := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	var errs []error
	for _, ch := range channels {
		if err := d.notifiers[ch].Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", ch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		d.logger.Debug("notification sent", "channel", ch, "title", msg.Title)
	}
	return errors.Join(errs...)
}
