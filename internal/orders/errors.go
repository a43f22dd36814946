package orders

import (
	"errors"
	"fmt"

	"github.com/procendp/stenodesk/internal/models"
)

var (
	// ErrIdentifierCollision means two concurrent submissions computed
	// the same order/request id. Retryable: regenerate and insert again.
	ErrIdentifierCollision = errors.New("order identifier collision")

	ErrReasonRequired  = errors.New("a reason is required for this status")
	ErrRequestNotFound = errors.New("request not found")
	ErrOrderNotFound   = errors.New("order not found")
)

type InvalidTransitionError struct {
	From models.Status
	To   models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}
