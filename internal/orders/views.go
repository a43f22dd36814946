package orders

import (
	"context"

	"github.com/procendp/stenodesk/internal/models"
)

// The admin surface projects the one requests table three ways:
// a unified listing, a per-order rollup and a per-request listing.
// These replace what used to be separate admin-facing model views.

type OrderSummary struct {
	OrderID       string          `json:"orderId"`
	OrderStatus   models.Status   `json:"orderStatus"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	RequestCount  int             `json:"requestCount"`
	PaymentAmount int64           `json:"paymentAmount"`
	RequestIDs    []string        `json:"requestIds"`
	First         *models.Request `json:"-"`
}

// IntegratedView lists every permanent request, newest first, the way
// the unified admin screen shows them.
func (s *Service) IntegratedView(ctx context.Context) ([]models.Request, error) {
	return s.store.ListRequests(ctx, false)
}

// RequestView is the per-request work screen: identical row set to the
// integrated view, provided separately so the two admin surfaces can
// diverge without schema games.
func (s *Service) RequestView(ctx context.Context) ([]models.Request, error) {
	return s.store.ListRequests(ctx, false)
}

// OrderView rolls permanent requests up by order id, keeping the
// first-created request's contact fields as the order's face.
func (s *Service) OrderView(ctx context.Context) ([]OrderSummary, error) {
	reqs, err := s.store.ListRequests(ctx, false)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[string]*OrderSummary)
	var order []string
	for i := range reqs {
		req := &reqs[i]
		sum, ok := byOrder[req.OrderID]
		if !ok {
			sum = &OrderSummary{
				OrderID:     req.OrderID,
				OrderStatus: req.OrderStatus,
			}
			byOrder[req.OrderID] = sum
			order = append(order, req.OrderID)
		}
		sum.RequestCount++
		sum.RequestIDs = append(sum.RequestIDs, req.RequestID)
		if req.PaymentAmount != nil {
			sum.PaymentAmount += *req.PaymentAmount
		}
		// Rows arrive newest first, so the last sibling seen is the
		// earliest one; its contact fields are the order's face.
		sum.First = req
		sum.Name = req.Name
		sum.Email = req.Email
		sum.Phone = req.Phone
	}

	out := make([]OrderSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byOrder[id])
	}
	return out, nil
}
