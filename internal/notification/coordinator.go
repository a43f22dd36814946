package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/models"
)

// ChannelRule is the per-status enablement table. Static configuration:
// not user-editable at runtime.
type ChannelRule struct {
	SMS   bool
	Email bool
}

// notificationRules mirrors the operational setup: email everywhere,
// SMS off until the sender number clears carrier registration.
var notificationRules = map[models.Status]ChannelRule{
	models.StatusReceived:         {SMS: false, Email: true},
	models.StatusPaymentCompleted: {SMS: false, Email: true},
	models.StatusInProgress:       {SMS: false, Email: true},
	models.StatusWorkCompleted:    {SMS: false, Email: true},
	models.StatusSent:             {SMS: false, Email: true},
	models.StatusImpossible:       {SMS: false, Email: true},
	models.StatusCancelled:        {SMS: false, Email: true},
	models.StatusRefunded:         {SMS: false, Email: true},
}

// NotificationSettings returns the channel enablement for a status.
// Unknown statuses get nothing.
func NotificationSettings(status models.Status) ChannelRule {
	return notificationRules[status]
}

// Store is the relational surface of the coordinator.
type Store interface {
	TemplateSource

	// Siblings returns all requests sharing an order id, oldest first.
	Siblings(ctx context.Context, orderID string) ([]models.Request, error)
	AppendSendLog(ctx context.Context, entry *models.SendLog) error
	// SendHistory returns prior successful sends matching the query and
	// the time of the latest one.
	SendHistory(ctx context.Context, q HistoryQuery) (int64, *time.Time, error)
	// MarkNotificationSent backfills the latest status-change log row.
	MarkNotificationSent(ctx context.Context, requestRow uint, toStatus models.Status, sent bool) error
	TranscriptFileOf(ctx context.Context, req *models.Request) (*models.File, error)
}

// ObjectGetter fetches a blob for attachment to a deliverable email.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type ChannelResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatch is the outcome of one notification trigger. Success is the
// AND of the attempted channels.
type Dispatch struct {
	SMS     *ChannelResult `json:"sms"`
	Email   *ChannelResult `json:"email"`
	Success bool           `json:"success"`
	Errors  []string       `json:"errors"`
}

type Coordinator struct {
	store   Store
	email   EmailSender
	sms     SMSSender
	objects ObjectGetter
	log     *logrus.Logger
	now     func() time.Time
}

func NewCoordinator(store Store, email EmailSender, sms SMSSender, objects ObjectGetter, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		store:   store,
		email:   email,
		sms:     sms,
		objects: objects,
		log:     log,
		now:     time.Now,
	}
}

// SendStatusNotification dispatches the status-change message for a
// request. Sibling requests sharing the order id and recipient email
// are merged into one consolidated message carried by the group's
// first-created request, no matter which sibling the mutation
// targeted. Channel failures are captured per channel and never
// abort the other channel.
func (c *Coordinator) SendStatusNotification(ctx context.Context, req *models.Request, newStatus, oldStatus models.Status, sendSMS, sendEmail bool) Dispatch {
	var d Dispatch

	group := c.recipientGroup(ctx, req)
	if len(group) == 0 {
		group = []models.Request{*req}
	}
	carrier := &group[0]

	vars := GroupVariables(group, c.now())

	if sendSMS && carrier.Phone != "" {
		d.SMS = c.dispatchSMS(ctx, carrier, newStatus, vars)
	}
	if sendEmail && carrier.Email != "" {
		d.Email = c.dispatchEmail(ctx, carrier, group, newStatus, vars)
	}

	d.Success = true
	for _, r := range []*ChannelResult{d.SMS, d.Email} {
		if r == nil {
			continue
		}
		if !r.Success {
			d.Success = false
			d.Errors = append(d.Errors, r.Error)
		}
	}

	if err := c.store.MarkNotificationSent(ctx, req.ID, newStatus, d.Success); err != nil {
		c.log.WithError(err).WithField("request_id", req.RequestID).Error("notification backfill failed")
	}
	return d
}

// NotifyStatusChange adapts the coordinator to the order service's
// notifier interface, applying the per-status channel rules.
func (c *Coordinator) NotifyStatusChange(ctx context.Context, req *models.Request, newStatus, oldStatus models.Status) (bool, []string) {
	rule := NotificationSettings(newStatus)
	d := c.SendStatusNotification(ctx, req, newStatus, oldStatus, rule.SMS, rule.Email)
	return d.Success, d.Errors
}

// recipientGroup returns the request's siblings that share its
// recipient email, oldest first. Lookup failure degrades to a
// single-request group.
func (c *Coordinator) recipientGroup(ctx context.Context, req *models.Request) []models.Request {
	siblings, err := c.store.Siblings(ctx, req.OrderID)
	if err != nil {
		c.log.WithError(err).WithField("order_id", req.OrderID).Error("sibling lookup failed")
		return nil
	}
	var group []models.Request
	for _, s := range siblings {
		if s.Email == req.Email {
			group = append(group, s)
		}
	}
	return group
}

func (c *Coordinator) dispatchSMS(ctx context.Context, req *models.Request, status models.Status, vars map[string]string) *ChannelResult {
	_, content := ResolveTemplate(ctx, c.store, status, ChannelSMS)
	body := Render(content, vars, c.log)

	result := &ChannelResult{}
	res, err := c.sms.SendSMS(ctx, SMSMessage{To: req.Phone, Body: body})
	if err != nil {
		result.Error = err.Error()
		c.log.WithError(err).WithField("request_id", req.RequestID).Error("sms send failed")
	} else {
		result.Success = true
		result.MessageID = res.MessageID
	}

	c.appendLog(ctx, req, string(status)+"_sms", req.Phone, result)
	return result
}

func (c *Coordinator) dispatchEmail(ctx context.Context, req *models.Request, group []models.Request, status models.Status, vars map[string]string) *ChannelResult {
	subject, content := ResolveTemplate(ctx, c.store, status, ChannelEmail)
	subject = Render(subject, vars, c.log)
	body := Render(content, vars, c.log)

	msg := EmailMessage{
		To:          req.Email,
		Subject:     subject,
		Body:        body,
		ContentType: "text/plain",
	}
	if status == models.StatusSent {
		msg.Attachments = c.collectTranscripts(ctx, group)
	}

	result := &ChannelResult{}
	res, err := c.email.SendEmail(ctx, msg)
	if err != nil {
		result.Error = err.Error()
		c.log.WithError(err).WithField("request_id", req.RequestID).Error("email send failed")
	} else {
		result.Success = true
		result.MessageID = res.MessageID
	}

	c.appendLog(ctx, req, string(status)+"_email", req.Email, result)
	return result
}

// collectTranscripts gathers the delivered transcript blobs of every
// request in a recipient group. A transcript that will not fetch is
// skipped, not fatal: the operator resends after fixing storage.
func (c *Coordinator) collectTranscripts(ctx context.Context, group []models.Request) []Attachment {
	var attachments []Attachment
	seen := make(map[string]struct{})
	for i := range group {
		transcript, err := c.store.TranscriptFileOf(ctx, &group[i])
		if err != nil || transcript == nil {
			continue
		}
		if _, dup := seen[transcript.ObjectKey]; dup {
			continue
		}
		seen[transcript.ObjectKey] = struct{}{}

		content, err := c.objects.Get(ctx, transcript.ObjectKey)
		if err != nil {
			c.log.WithError(err).WithField("key", transcript.ObjectKey).Error("transcript fetch failed")
			continue
		}
		attachments = append(attachments, Attachment{
			Filename:    transcript.OriginalName,
			Content:     content,
			ContentType: transcript.ContentType,
		})
	}
	return attachments
}

func (c *Coordinator) appendLog(ctx context.Context, req *models.Request, emailType, recipient string, result *ChannelResult) {
	entry := &models.SendLog{
		OrderID:       req.OrderID,
		RequestID:     req.RequestID,
		EmailType:     emailType,
		Recipient:     recipient,
		PaymentAmount: req.PaymentAmount,
		Success:       result.Success,
		ErrorMessage:  result.Error,
	}
	if err := c.store.AppendSendLog(ctx, entry); err != nil {
		c.log.WithError(err).WithField("request_id", req.RequestID).Error("send log append failed")
	}
}
