package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/procendp/stenodesk/internal/config"
)

// SensClient sends SMS through the Naver Cloud SENS API.
type SensClient struct {
	baseURL    string
	accessKey  string
	secretKey  string
	serviceID  string
	senderNo   string
	maxRetries uint64
	interval   time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func NewSensClient(cfg config.NotifyConfig, accessKey, secretKey string) *SensClient {
	return &SensClient{
		baseURL:    cfg.SMSAPIURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		serviceID:  cfg.SMSServiceID,
		senderNo:   cfg.SMSSenderNo,
		maxRetries: cfg.MaxRetries,
		interval:   cfg.RetryInterval,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

type sensMessage struct {
	To string `json:"to"`
}

type sensRequest struct {
	Type     string        `json:"type"`
	From     string        `json:"from"`
	Content  string        `json:"content"`
	Messages []sensMessage `json:"messages"`
}

type sensResponse struct {
	RequestID  string `json:"requestId"`
	StatusCode string `json:"statusCode"`
}

// signature builds the SENS request signature:
// HMAC-SHA256 over "METHOD URI\nTIMESTAMP\nACCESS_KEY".
func (c *SensClient) signature(method, uri, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	fmt.Fprintf(mac, "%s %s\n%s\n%s", method, uri, timestamp, c.accessKey)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *SensClient) SendSMS(ctx context.Context, msg SMSMessage) (Result, error) {
	uri := fmt.Sprintf("/sms/v2/services/%s/messages", c.serviceID)
	body, err := json.Marshal(sensRequest{
		Type:     "SMS",
		From:     c.senderNo,
		Content:  msg.Body,
		Messages: []sensMessage{{To: msg.To}},
	})
	if err != nil {
		return Result{}, err
	}

	var out sensResponse
	op := func() error {
		timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uri, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("x-ncp-apigw-timestamp", timestamp)
		req.Header.Set("x-ncp-iam-access-key", c.accessKey)
		req.Header.Set("x-ncp-apigw-signature-v2", c.signature(http.MethodPost, uri, timestamp))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("sms provider returned %d", resp.StatusCode)
		}
		// SENS acknowledges accepted messages with 202.
		if resp.StatusCode != http.StatusAccepted {
			return backoff.Permanent(fmt.Errorf("sms provider returned %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.interval),
	), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Result{}, &SendError{Channel: ChannelSMS, Err: err}
	}
	return Result{MessageID: out.RequestID}, nil
}
