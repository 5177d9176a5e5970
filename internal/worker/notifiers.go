package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LogNotifier writes the message to the log instead of sending it, for
// deployments without a messaging gateway.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, number, message string) error {
	slog.InfoContext(ctx, "notification (log only)",
		"number", number,
		"message", message)
	return nil
}

// WebhookNotifier POSTs the message to a gateway endpoint as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, number, message string) error {
	payload, err := json.Marshal(map[string]string{
		"number":  number,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway returned %d", resp.StatusCode)
	}
	return nil
}
