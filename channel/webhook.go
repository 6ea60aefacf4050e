package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stridehq/stride/config"
)

// WebhookSender posts messages to the provider's webhook endpoint as JSON.
type WebhookSender struct {
	url    string
	client *http.Client
	creds  *CredentialResolver
}

// NewWebhookSender builds the sender from application configuration.
func NewWebhookSender(cfg config.AppConfig) *WebhookSender {
	return &WebhookSender{
		url: cfg.ChannelWebhookURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.ChannelTimeoutSec) * time.Second,
		},
		creds: NewCredentialResolver(cfg.ChannelProvider, cfg.ChannelTokenURL, cfg.ChannelClientID, cfg.ChannelClientSecret),
	}
}

type webhookPayload struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// Send implements Sender.
func (w *WebhookSender) Send(ctx context.Context, projectID uint, recipientExternalID, content string) error {
	if w.url == "" {
		return fmt.Errorf("channel webhook url not configured")
	}

	token, err := w.creds.Token(ctx, projectID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{Recipient: recipientExternalID, Content: content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("channel responded %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
