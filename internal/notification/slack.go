package notification

import (
	"context"
	"fmt"
)

// SlackProvider sends Slack incoming-webhook notifications
type SlackProvider struct {
	webhookURL string
	channel    string
}

// NewSlackProvider creates a Slack provider. channel is optional.
func NewSlackProvider(webhookURL, channel string) *SlackProvider {
	return &SlackProvider{webhookURL: webhookURL, channel: channel}
}

func (s *SlackProvider) Name() string {
	return "slack"
}

func (s *SlackProvider) Send(ctx context.Context, message *Message) error {
	if s.webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}

	color, icon := "danger", ":x:"
	if message.Status == "up" {
		color, icon = "good", ":white_check_mark:"
	}

	fields := []map[string]interface{}{
		{"title": "Monitor", "value": message.MonitorName, "short": true},
		{"title": "Status", "value": message.Status, "short": true},
	}
	if message.Target != "" {
		fields = append(fields, map[string]interface{}{"title": "Target", "value": message.Target, "short": false})
	}

	payload := map[string]interface{}{
		"username":   "uptimed",
		"icon_emoji": icon,
		"attachments": []interface{}{
			map[string]interface{}{
				"color":  color,
				"title":  message.Title,
				"text":   message.Body,
				"ts":     message.Time.Unix(),
				"fields": fields,
			},
		},
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}

	if err := postJSON(ctx, s.webhookURL, payload, nil); err != nil {
		return fmt.Errorf("failed to send Slack webhook: %w", err)
	}
	return nil
}
