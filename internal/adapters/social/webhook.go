package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kimiaxe-digest-bot/internal/infra/metrics"
)

// WebhookSender доставляет сообщение POST-запросом с JSON-телом из одного
// поля. Discord принимает {"content": ...}, Twitter-мост — {"text": ...}.
type WebhookSender struct {
	name     string
	endpoint string
	field    string
	client   *http.Client
}

// NewWebhookSender создаёт канал на основе вебхука. Пустой endpoint
// означает, что канал не настроен.
func NewWebhookSender(name, endpoint, field string) *WebhookSender {
	return &WebhookSender{
		name:     name,
		endpoint: endpoint,
		field:    field,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewDiscordSender создаёт канал Discord-вебхука.
func NewDiscordSender(endpoint string) *WebhookSender {
	return NewWebhookSender("discord", endpoint, "content")
}

// NewTwitterSender создаёт канал публикации в Twitter через вебхук-мост.
func NewTwitterSender(endpoint string) *WebhookSender {
	return NewWebhookSender("twitter", endpoint, "text")
}

// Name реализует domain.Sender.
func (s *WebhookSender) Name() string { return s.name }

// Configured реализует domain.Sender.
func (s *WebhookSender) Configured() bool { return s.endpoint != "" }

// Send выполняет POST и считает любой не-2xx ответ ошибкой канала.
func (s *WebhookSender) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{s.field: message})
	if err != nil {
		return fmt.Errorf("сериализация тела: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveNetworkRequest("webhook", "publish", s.name, start, err)
	if err != nil {
		return fmt.Errorf("выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s publish failed: status %d %s", s.name, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
