package orders

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/procendp/stenodesk/internal/models"
)

// transitions is the whitelist of legal status moves. It applies to both
// the per-file status and the per-order status. Terminal states map to
// an empty set.
var transitions = map[models.Status][]models.Status{
	models.StatusReceived:         {models.StatusPaymentCompleted, models.StatusImpossible, models.StatusCancelled},
	models.StatusPaymentCompleted: {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress:       {models.StatusWorkCompleted, models.StatusImpossible},
	models.StatusWorkCompleted:    {models.StatusSent},
	models.StatusSent:             {},
	models.StatusImpossible:       {models.StatusCancelled, models.StatusRefunded},
	models.StatusCancelled:        {models.StatusRefunded},
	models.StatusRefunded:         {},
}

// CanChangeTo reports whether moving from current to next is allowed.
// The guard is advisory: administrative overrides may skip it, so it is
// never enforced inside the mutation path itself.
func CanChangeTo(current, next models.Status) bool {
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// reasonRequired lists the states that must carry a non-empty operator
// reason on entry.
func reasonRequired(next models.Status) bool {
	return next == models.StatusImpossible || next == models.StatusCancelled
}

// refundPattern matches the refund amount embedded in a free-text
// reason, e.g. "고객 요청. 환불금액:45,000원".
var refundPattern = regexp.MustCompile(`환불금액\s*:\s*([0-9,]+)\s*원`)

// ParseRefundAmount extracts the refund amount from a reason string.
// Returns ok=false when no amount is present or it does not parse;
// that is not an error, the field is simply left unset.
func ParseRefundAmount(reason string) (int64, bool) {
	m := refundPattern.FindStringSubmatch(reason)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
