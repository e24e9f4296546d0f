package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"
)

const (
	DefaultTimeout    = 10 * time.Second
	serverTokenHeader = "X-Postmark-Server-Token"
)

type Config struct {
	BaseURL            string
	Sender             string
	AuthorizationToken string
	Timeout            time.Duration
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Client posts messages to a Postmark-compatible HTTP API.
type Client struct {
	baseURL    string
	sender     valueobjects.EmailAddress
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	sender, err := valueobjects.ParseEmailAddress(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("email base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		sender:     sender,
		token:      cfg.AuthorizationToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) SendEmail(ctx context.Context, message entities.Email) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       message.Recipient,
		Subject:  message.Subject,
		HtmlBody: message.HTMLContent,
		TextBody: message.TextContent,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(serverTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domainerrors.ErrEmailDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: email api returned status %d", domainerrors.ErrEmailDeliveryFailed, resp.StatusCode)
	}
	return nil
}
