package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultNtfyServer = "https://ntfy.sh"

// NtfyProvider publishes to an ntfy topic (self-hosted or ntfy.sh)
type NtfyProvider struct {
	serverURL string
	topic     string
}

// NewNtfyProvider creates an ntfy provider. An empty serverURL selects ntfy.sh.
func NewNtfyProvider(serverURL, topic string) *NtfyProvider {
	if serverURL == "" {
		serverURL = defaultNtfyServer
	}
	return &NtfyProvider{serverURL: strings.TrimRight(serverURL, "/"), topic: topic}
}

func (n *NtfyProvider) Name() string {
	return "ntfy"
}

func (n *NtfyProvider) Send(ctx context.Context, message *Message) error {
	if n.topic == "" {
		return fmt.Errorf("topic is required")
	}

	url := fmt.Sprintf("%s/%s", n.serverURL, n.topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(FormatMessage(message)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Title", message.Title)
	if message.Status == "down" {
		req.Header.Set("Priority", "4")
		req.Header.Set("Tags", "x,warning")
	} else {
		req.Header.Set("Priority", "3")
		req.Header.Set("Tags", "white_check_mark")
	}
	if message.Link != "" {
		req.Header.Set("Click", message.Link)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}
	return nil
}
