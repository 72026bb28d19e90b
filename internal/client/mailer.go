package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Email template identifiers
const (
	TemplateWelcome                = "welcome"
	TemplateExpiryWarning          = "expiry_warning"
	TemplateConversionLink         = "conversion_link"
	TemplateConversionConfirmation = "conversion_confirmation"
)

// MailerClient sends templated emails through the mailer service. Send
// failures are logged by callers, never escalated into workflow failures.
type MailerClient struct {
	baseURL     string
	internalKey string
	httpClient  *http.Client
}

// NewMailerClient creates a new mailer service client
func NewMailerClient(baseURL, internalKey string) *MailerClient {
	return &MailerClient{
		baseURL:     baseURL,
		internalKey: internalKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sendRequest struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Args      map[string]any `json:"args"`
}

// Send delivers one templated email
func (c *MailerClient) Send(ctx context.Context, recipient, template string, args map[string]any) error {
	body, err := json.Marshal(sendRequest{Recipient: recipient, Template: template, Args: args})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/internal/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", c.internalKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}

	return nil
}
