package notification

import (
	"context"
	"fmt"
)

// WebhookProvider posts the message as JSON to a URL
type WebhookProvider struct {
	url     string
	headers map[string]string
}

// NewWebhookProvider creates a webhook provider
func NewWebhookProvider(url string, headers map[string]string) *WebhookProvider {
	return &WebhookProvider{url: url, headers: headers}
}

func (w *WebhookProvider) Name() string {
	return "webhook"
}

func (w *WebhookProvider) Send(ctx context.Context, message *Message) error {
	if w.url == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if err := postJSON(ctx, w.url, message, w.headers); err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	return nil
}
