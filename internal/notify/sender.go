// Package notify renders and delivers order and account notifications.
// Delivery is best-effort: nothing here is on the critical path of a request.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MailClient delivers messages through the mailer service's POST /send.
type MailClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMailClient(baseURL string, client *http.Client) *MailClient {
	return &MailClient{baseURL: baseURL, httpClient: client}
}

func (c *MailClient) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailer returned status %d for %s", resp.StatusCode, msg.To)
	}

	return nil
}
