package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordingNotifier struct {
	ch   Channel
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}
func (r *recordingNotifier) Channel() Channel { return r.ch }

func TestDispatcher_NoChannelsIsNoop(t *testing.T) {
	d := NewDispatcher()
	if d.Enabled() {
		t.Fatal("expected disabled dispatcher")
	}
	if err := d.Notify(context.Background(), Message{Title: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var nilDispatcher *Dispatcher
	if err := nilDispatcher.Notify(context.Background(), Message{}); err != nil {
		t.Fatalf("nil dispatcher should be a no-op, got %v", err)
	}
}

func TestDispatcher_ContinuesAfterFailure(t *testing.T) {
	failing := &recordingNotifier{ch: ChannelTelegram, err: errors.New("down")}
	ok := &recordingNotifier{ch: ChannelWebhook}

	d := NewDispatcher()
	d.Register(failing)
	d.Register(ok)

	err := d.Notify(context.Background(), Message{Title: "dead letter"})
	if err == nil || !strings.Contains(err.Error(), "telegram") {
		t.Fatalf("expected telegram error, got %v", err)
	}
	if len(ok.sent) != 1 {
		t.Fatalf("expected webhook to receive message, got %d", len(ok.sent))
	}
	if ok.sent[0].Level != LevelInfo {
		t.Fatalf("expected default level info, got %q", ok.sent[0].Level)
	}
}

func TestFromConfig(t *testing.T) {
	if FromConfig(Config{}).Enabled() {
		t.Fatal("empty config should register nothing")
	}
	d := FromConfig(Config{Telegram: TelegramConfig{BotToken: "t"}})
	if d.Enabled() {
		t.Fatal("telegram without channel id should be ignored")
	}
	d = FromConfig(Config{Webhook: WebhookConfig{URL: "http://example.invalid"}})
	if !d.Enabled() {
		t.Fatal("expected webhook channel")
	}
}

func TestWebhookNotifier_SendsAlertPayload(t *testing.T) {
	var (
		got       WebhookPayload
		rawBody   []byte
		event     string
		signature string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("missing custom header")
		}
		event = r.Header.Get(HeaderEvent)
		signature = r.Header.Get(HeaderSignature)
		rawBody, _ = io.ReadAll(r.Body)
		_ = json.Unmarshal(rawBody, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: "s3cret", Headers: map[string]string{"X-Token": "abc"}})
	n.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

	err := n.Send(context.Background(), Message{
		Title:  "Newsroom item dead-lettered",
		Body:   "Wick runway failed 5 times.",
		Level:  LevelAlert,
		Event:  EventDeadLetter,
		URL:    "https://example.com/wick",
		Fields: map[string]string{
			"queueItemId": "3f2a",
			"attempts":    "5",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got.Source != "newsroom" || got.Event != EventDeadLetter || got.Level != LevelAlert {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if got.Text != "Wick runway failed 5 times." || got.URL != "https://example.com/wick" {
		t.Fatalf("unexpected content: %+v", got)
	}
	if got.Fields["queueItemId"] != "3f2a" || got.Fields["attempts"] != "5" {
		t.Fatalf("unexpected fields: %v", got.Fields)
	}
	if !got.SentAt.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sentAt: %v", got.SentAt)
	}
	if event != string(EventDeadLetter) {
		t.Fatalf("unexpected event header %q", event)
	}
	if signature != Sign("s3cret", rawBody) {
		t.Fatalf("signature %q does not match body", signature)
	}
}

func TestWebhookNotifier_DefaultsAndErrors(t *testing.T) {
	var got WebhookPayload
	var signed bool
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signed = r.Header.Get(HeaderSignature) != ""
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "queue full")
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	if err := n.Send(context.Background(), Message{Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if got.Level != LevelInfo || got.Event != Event(LevelInfo) {
		t.Fatalf("expected info defaults, got %+v", got)
	}
	if signed {
		t.Fatal("unexpected signature without a secret")
	}

	status = http.StatusServiceUnavailable
	err := n.Send(context.Background(), Message{Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "TOKEN", ChannelID: "@ops", APIBase: srv.URL})
	if err := n.Send(context.Background(), Message{Title: "Run done", Body: "2 articles."}); err != nil {
		t.Fatal(err)
	}
	if payload["chat_id"] != "@ops" {
		t.Fatalf("unexpected chat id: %v", payload["chat_id"])
	}
	if text, _ := payload["text"].(string); text != "*Run done*\n\n2 articles\\." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b (c)!"); got != `a\_b \(c\)\!` {
		t.Fatalf("unexpected escape: %q", got)
	}
}
