package notification

import (
	"context"
	"fmt"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

type EmailMessage struct {
	To          string
	Subject     string
	Body        string
	ContentType string // text/plain or text/html
	Attachments []Attachment
}

type SMSMessage struct {
	To   string
	Body string
}

// Result is a provider acknowledgement for one message.
type Result struct {
	MessageID string
}

// EmailSender and SMSSender are the notification sinks. Provider
// wrappers implement them; tests substitute fakes.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (Result, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (Result, error)
}

// SendError is a channel-level delivery failure. It is captured and
// aggregated by the coordinator, never propagated into the status
// change that triggered the send.
type SendError struct {
	Channel Channel
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
