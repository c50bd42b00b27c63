package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// WebhookNotifier POSTs the structured notification payload as JSON to a
// configured endpoint, for downstream systems that render their own text.
type WebhookNotifier struct {
	url    string
	client *resty.Client
	logger zerolog.Logger
}

// NewWebhookNotifier 构造通用 Webhook 告警器。
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: resty.New().SetTimeout(timeout),
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

type webhookEnvelope struct {
	SubscriberID int64          `json:"subscriber_id"`
	ArtistID     int64          `json:"artist_id"`
	ArtistName   string         `json:"artist_name"`
	Kind         string         `json:"kind"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Notify 推送 JSON 负载。
func (n *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	envelope := webhookEnvelope{
		SubscriberID: note.SubscriberID,
		ArtistID:     note.ArtistID,
		ArtistName:   note.ArtistName,
		Kind:         note.Kind,
		Title:        note.Title,
		Message:      note.Message,
		Payload:      note.Payload,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(envelope).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook 响应码异常: %d", resp.StatusCode())
	}

	n.logger.Info().Int64("subscriber_id", note.SubscriberID).
		Int64("artist_id", note.ArtistID).
		Str("kind", note.Kind).
		Msg("告警已发送 (Webhook)")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
