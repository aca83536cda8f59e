package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider delivers incident messages to one channel
type Provider interface {
	// Name returns the unique identifier for this provider
	Name() string

	// Send sends the message
	Send(ctx context.Context, message *Message) error
}

// Message represents a notification message to be sent
type Message struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	IncidentID  string    `json:"incident_id"`
	MonitorID   string    `json:"monitor_id"`
	MonitorName string    `json:"monitor_name"`
	Target      string    `json:"target"`
	Status      string    `json:"status"` // "up" or "down"
	StartedAt   time.Time `json:"started_at"`
	DurationS   *int64    `json:"duration_s,omitempty"`
	Link        string    `json:"link,omitempty"`
	Time        time.Time `json:"time"`
}

// FormatMessage renders a plain text body with the common details
func FormatMessage(msg *Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", msg.Title)
	if msg.Body != "" {
		b.WriteString(msg.Body + "\n\n")
	}
	fmt.Fprintf(&b, "Monitor: %s (%s)\n", msg.MonitorName, msg.MonitorID)
	if msg.Target != "" {
		fmt.Fprintf(&b, "Target: %s\n", msg.Target)
	}
	if msg.DurationS != nil {
		fmt.Fprintf(&b, "Downtime: %s\n", (time.Duration(*msg.DurationS) * time.Second).String())
	}
	if msg.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", msg.Link)
	}
	fmt.Fprintf(&b, "Time: %s\n", msg.Time.UTC().Format(time.RFC3339))

	return b.String()
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// postJSON sends payload to url and expects a 2xx answer.
func postJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "uptimed/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
