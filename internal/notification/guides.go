package notification

import (
	"context"

	"github.com/procendp/stenodesk/internal/models"
)

var guideSubjects = map[EmailType]string{
	EmailTypeQuotation:             "[속기사무소 정] 견적 안내",
	EmailTypePaymentCompletion:     "[속기사무소 정] 결제 완료 안내",
	EmailTypeDraft:                 "[속기사무소 정] 수정안 안내",
	EmailTypeFinalDraft:            "[속기사무소 정] 최종본 안내",
	EmailTypeApplicationCompletion: "[속기사무소 정] 신청 완료 안내",
}

var guideBodies = map[EmailType]string{
	EmailTypeQuotation:             "{name}님, 주문번호 {order_id}번의 견적은 {estimated_price}입니다.\n\n파일:\n{file_summary}",
	EmailTypePaymentCompletion:     "{name}님, {payment_amount} 결제가 확인되었습니다.",
	EmailTypeDraft:                 "{name}님, 수정안을 첨부해 드립니다. 확인 부탁드립니다.",
	EmailTypeFinalDraft:            "{name}님, 최종본을 첨부해 드립니다. 이용해 주셔서 감사합니다.",
	EmailTypeApplicationCompletion: "{name}님, 주문번호 {order_id}번 신청이 완료되었습니다.\n\n파일:\n{file_summary}",
}

// GuideRecipientResult is one recipient's outcome within a bulk guide
// send.
type GuideRecipientResult struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// GuideResult aggregates a bulk guide send across the recipient groups
// of one order.
type GuideResult struct {
	SuccessCount int                    `json:"successCount"`
	Recipients   []GuideRecipientResult `json:"recipients"`
}

// SendGuide dispatches an operator-triggered guide email to every
// recipient of an order. Requests are grouped by recipient email so a
// multi-file order produces one message per address; a failure for one
// recipient does not abort the rest. Deliverable guide types attach
// the group's transcripts.
func (c *Coordinator) SendGuide(ctx context.Context, orderID string, emailType EmailType) (GuideResult, error) {
	var out GuideResult

	siblings, err := c.store.Siblings(ctx, orderID)
	if err != nil {
		return out, err
	}

	groups := make(map[string][]models.Request)
	var order []string
	for _, req := range siblings {
		if req.IsTemporary {
			continue
		}
		if _, ok := groups[req.Email]; !ok {
			order = append(order, req.Email)
		}
		groups[req.Email] = append(groups[req.Email], req)
	}

	for _, email := range order {
		group := groups[email]
		first := &group[0]

		vars := GroupVariables(group, c.now())
		subject := Render(guideSubjects[emailType], vars, c.log)
		body := Render(guideBodies[emailType], vars, c.log)

		msg := EmailMessage{
			To:          email,
			Subject:     subject,
			Body:        body,
			ContentType: "text/plain",
		}
		if emailType == EmailTypeDraft || emailType == EmailTypeFinalDraft {
			msg.Attachments = c.collectTranscripts(ctx, group)
		}

		result := &ChannelResult{}
		res, err := c.email.SendEmail(ctx, msg)
		if err != nil {
			result.Error = err.Error()
			c.log.WithError(err).WithField("recipient", email).Error("guide send failed")
		} else {
			result.Success = true
			result.MessageID = res.MessageID
			out.SuccessCount++
		}
		c.appendLog(ctx, first, string(emailType), email, result)

		out.Recipients = append(out.Recipients, GuideRecipientResult{
			Recipient: email,
			Success:   result.Success,
			Error:     result.Error,
		})
	}
	return out, nil
}
