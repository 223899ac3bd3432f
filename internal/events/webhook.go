package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

// Webhook POSTs each event as JSON to a fixed URL.
type Webhook struct {
	log    *logger.Logger
	client *resty.Client
	url    string
}

func NewWebhook(log *logger.Logger, url string, timeout time.Duration) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("missing EVENTS_WEBHOOK_URL")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Webhook{log: log.With("service", "EventWebhook"), client: client, url: url}, nil
}

func (w *Webhook) Publish(ctx context.Context, evt Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", string(evt.Type)).
		SetBody(evt).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		w.log.Warn("webhook rejected event", "status", resp.StatusCode(), "type", evt.Type)
		return fmt.Errorf("webhook post: status %d", resp.StatusCode())
	}
	return nil
}
