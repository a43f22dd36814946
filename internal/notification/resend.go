package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/procendp/stenodesk/internal/config"
)

// ResendClient sends email through the Resend REST API.
type ResendClient struct {
	apiURL     string
	apiKey     string
	from       string
	maxRetries uint64
	interval   time.Duration
	httpClient *http.Client
}

func NewResendClient(cfg config.NotifyConfig) *ResendClient {
	return &ResendClient{
		apiURL:     cfg.EmailAPIURL,
		apiKey:     cfg.EmailAPIKey,
		from:       cfg.EmailFrom,
		maxRetries: cfg.MaxRetries,
		interval:   cfg.RetryInterval,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (c *ResendClient) SendEmail(ctx context.Context, msg EmailMessage) (Result, error) {
	payload := resendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
	}
	if msg.ContentType == "text/plain" {
		payload.Text = msg.Body
	} else {
		payload.HTML = msg.Body
	}
	for _, att := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, resendAttachment{
			Filename: att.Filename,
			Content:  base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	var out resendResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("email provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("email provider returned %d: %s", resp.StatusCode, raw))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.interval),
	), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Result{}, &SendError{Channel: ChannelEmail, Err: err}
	}
	return Result{MessageID: out.ID}, nil
}
