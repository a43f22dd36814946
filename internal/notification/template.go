package notification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/models"
)

// TemplateSource resolves a stored template for a (status, channel)
// pair, returning nil when none exists.
type TemplateSource interface {
	TemplateFor(ctx context.Context, status models.Status, channel Channel) (*models.Template, error)
}

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Render substitutes {placeholder} occurrences with values from vars.
// Unresolvable placeholders are logged and left as literal text.
func Render(content string, vars map[string]string, log *logrus.Logger) string {
	result := content
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		value, ok := vars[name]
		if !ok {
			if log != nil {
				log.WithField("placeholder", name).Warn("unknown template placeholder")
			}
			continue
		}
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}

func formatWon(amount *int64) string {
	if amount == nil {
		return ""
	}
	// Thousands separators, Korean style: 75000 -> "75,000원".
	s := fmt.Sprintf("%d", *amount)
	var b strings.Builder
	if strings.HasPrefix(s, "-") {
		b.WriteByte('-')
		s = s[1:]
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "원"
}

// Variables flattens a request into the template variable set.
func Variables(req *models.Request, now time.Time) map[string]string {
	recordingDate := ""
	if req.RecordingDate != nil {
		recordingDate = req.RecordingDate.Format("2006년 01월 02일")
	}
	paymentStatus := "미결제"
	if req.PaymentStatus {
		paymentStatus = "결제완료"
	}
	return map[string]string{
		"name":    req.Name,
		"email":   req.Email,
		"phone":   req.Phone,
		"address": req.Address,

		"order_id":   req.OrderID,
		"request_id": req.RequestID,

		"status":      string(req.Status),
		"status_code": string(req.Status),

		"recording_date":     recordingDate,
		"recording_location": req.RecordingLocation,
		"speaker_count":      fmt.Sprintf("%d", req.SpeakerCount),
		"speaker_names":      req.SpeakerNames,
		"total_duration":     req.TotalDuration,

		"estimated_price": formatWon(req.EstimatedPrice),
		"payment_amount":  formatWon(req.PaymentAmount),
		"payment_status":  paymentStatus,

		"draft_format": string(req.DraftFormat),
		"final_option": string(req.FinalOption),

		"today": now.Format("2006년 01월 02일"),
		"now":   now.Format("15시 04분"),

		"company":       "속기사무소 정",
		"company_phone": "070-1234-5678",
		"company_email": "procendp@gmail.com",
	}
}

// GroupVariables extends Variables with the combined file summary of a
// recipient group, so a multi-file order reads as one message.
func GroupVariables(group []models.Request, now time.Time) map[string]string {
	if len(group) == 0 {
		return map[string]string{}
	}
	vars := Variables(&group[0], now)

	var lines []string
	var durations []string
	for _, req := range group {
		line := req.RequestID
		if req.TotalDuration != "" {
			line += " (" + req.TotalDuration + ")"
			durations = append(durations, req.TotalDuration)
		}
		lines = append(lines, line)
	}
	vars["file_count"] = fmt.Sprintf("%d", len(group))
	vars["file_summary"] = strings.Join(lines, "\n")
	vars["durations"] = strings.Join(durations, ", ")
	return vars
}

// Fallback messages used when no stored template matches.
var defaultMessages = map[models.Status]map[Channel]string{
	models.StatusReceived: {
		ChannelSMS:   "안녕하세요 {name}님, 속기사무소 정입니다. 주문번호 {order_id}번 접수가 완료되었습니다.",
		ChannelEmail: "안녕하세요 {name}님,\n\n속기사무소 정입니다.\n주문번호 {order_id}번 접수가 완료되었습니다.\n\n접수 파일:\n{file_summary}\n\n감사합니다.",
	},
	models.StatusPaymentCompleted: {
		ChannelSMS:   "{name}님, 결제가 완료되었습니다. 곧 작업을 시작하겠습니다.",
		ChannelEmail: "{name}님, 결제가 완료되었습니다.\n\n결제 금액: {payment_amount}\n\n작업이 시작되면 다시 안내드리겠습니다.",
	},
	models.StatusInProgress: {
		ChannelSMS:   "{name}님, 속기 작업을 시작했습니다.",
		ChannelEmail: "{name}님, 주문번호 {order_id}번의 속기 작업을 시작했습니다.",
	},
	models.StatusWorkCompleted: {
		ChannelSMS:   "{name}님, 속기 작업이 완료되었습니다. 곧 발송 예정입니다.",
		ChannelEmail: "{name}님, 속기 작업이 완료되었습니다.\n\n최종 검토 후 발송하겠습니다.",
	},
	models.StatusSent: {
		ChannelSMS:   "{name}님, 속기록이 발송되었습니다. 이메일을 확인해주세요.",
		ChannelEmail: "{name}님, 속기록을 발송했습니다.\n\n첨부파일을 확인해주세요.",
	},
	models.StatusImpossible: {
		ChannelEmail: "{name}님, 죄송합니다. 주문번호 {order_id}번은 작업이 불가합니다.\n\n사유를 별도로 안내드리겠습니다.",
	},
	models.StatusCancelled: {
		ChannelEmail: "{name}님, 주문번호 {order_id}번이 취소되었습니다.",
	},
	models.StatusRefunded: {
		ChannelEmail: "{name}님, 환불 처리가 완료되었습니다.",
	},
}

var defaultSubjects = map[models.Status]string{
	models.StatusReceived:         "[속기사무소 정] 접수 완료 안내",
	models.StatusPaymentCompleted: "[속기사무소 정] 결제 완료 안내",
	models.StatusInProgress:       "[속기사무소 정] 작업 시작 안내",
	models.StatusWorkCompleted:    "[속기사무소 정] 작업 완료 안내",
	models.StatusSent:             "[속기사무소 정] 속기록 발송 완료",
	models.StatusImpossible:       "[속기사무소 정] 작업 불가 안내",
	models.StatusCancelled:        "[속기사무소 정] 주문 취소 안내",
	models.StatusRefunded:         "[속기사무소 정] 환불 완료 안내",
}

// ResolveTemplate returns the message subject and body for a status and
// channel: the stored template when one exists, the hard-coded default
// otherwise.
func ResolveTemplate(ctx context.Context, src TemplateSource, status models.Status, channel Channel) (subject, content string) {
	subject = defaultSubjects[status]
	if subject == "" {
		subject = "[속기사무소 정] 알림"
	}
	content = defaultMessages[status][channel]
	if content == "" {
		content = "{name}님, 주문 상태가 변경되었습니다."
	}

	if src == nil {
		return subject, content
	}
	tpl, err := src.TemplateFor(ctx, status, channel)
	if err != nil || tpl == nil {
		return subject, content
	}
	if tpl.Subject != "" {
		subject = tpl.Subject
	}
	return subject, tpl.Content
}
