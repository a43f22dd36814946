package notification

import (
	"context"
	"time"
)

// EmailType identifies the operator-triggered guide messages. Status
// notifications use "<status>_<channel>" as their type.
type EmailType string

const (
	EmailTypeQuotation             EmailType = "quotation_guide"
	EmailTypePaymentCompletion     EmailType = "payment_completion_guide"
	EmailTypeDraft                 EmailType = "draft_guide"
	EmailTypeFinalDraft            EmailType = "final_draft_guide"
	EmailTypeApplicationCompletion EmailType = "application_completion_guide"
)

// AmountBearing reports whether duplicates of this type are detected by
// payment amount. Deliverable types (draft, final draft) are keyed by
// request instead: resending the same document is the suspicious case.
func (t EmailType) AmountBearing() bool {
	switch t {
	case EmailTypeQuotation, EmailTypePaymentCompletion, EmailTypeApplicationCompletion:
		return true
	default:
		return false
	}
}

// HistoryQuery selects prior sends for duplicate detection:
// by (order id, email type, payment amount) for amount-bearing types,
// by (request id, email type) for deliverable types.
type HistoryQuery struct {
	OrderID       string
	RequestID     string
	EmailType     EmailType
	PaymentAmount *int64
}

// HistoryResult is a warning surface, not a block: the operator
// confirms or aborts the resend.
type HistoryResult struct {
	HasDuplicate bool       `json:"hasDuplicate"`
	PriorSends   int64      `json:"priorSends"`
	LastSentAt   *time.Time `json:"lastSentAt,omitempty"`
}

// CheckSendHistory reports whether the same message has already been
// sent. Changing the payment amount resets detection for amount-bearing
// types.
func (c *Coordinator) CheckSendHistory(ctx context.Context, q HistoryQuery) (HistoryResult, error) {
	count, last, err := c.store.SendHistory(ctx, q)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{
		HasDuplicate: count > 0,
		PriorSends:   count,
		LastSentAt:   last,
	}, nil
}
