package orders

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/models"
)

// StatusLevel selects which of the two status fields a mutation targets.
// Order-level changes fan out to every request in the order.
type StatusLevel string

const (
	LevelOrder   StatusLevel = "order"
	LevelRequest StatusLevel = "request"
)

// collisionRetries bounds regeneration after a duplicate request id.
const collisionRetries = 3

// Store is the relational surface the order service needs.
type Store interface {
	Directory

	// CreateInOrder runs build inside one serializable transaction,
	// with a transaction-scoped Directory, and inserts the returned
	// requests. A unique violation on request_id surfaces as
	// ErrIdentifierCollision.
	CreateInOrder(ctx context.Context, build func(dir Directory) ([]*models.Request, error)) error

	RequestByRequestID(ctx context.Context, requestID string) (*models.Request, error)
	// Siblings returns all requests sharing an order id, oldest first.
	Siblings(ctx context.Context, orderID string) ([]models.Request, error)
	SaveRequest(ctx context.Context, req *models.Request) error
	AppendStatusChange(ctx context.Context, entry *models.StatusChangeLog) error

	AttachFile(ctx context.Context, requestRow uint, objectKey string) error
	FilesOfRequest(ctx context.Context, requestRow uint) ([]models.File, error)
	DeleteRequestRow(ctx context.Context, requestRow uint) error

	ListRequests(ctx context.Context, includeTemporary bool) ([]models.Request, error)
}

// Notifier dispatches a status-change notification. Implemented by the
// notification coordinator; kept narrow so notification failures stay
// opaque to the mutation path.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, req *models.Request, newStatus, oldStatus models.Status) (sent bool, errs []string)
}

// ObjectDeleter is the single object-store operation order deletion
// needs.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store   Store
	gen     *Generator
	notify  Notifier
	objects ObjectDeleter
	log     *logrus.Logger
}

func NewService(store Store, notify Notifier, objects ObjectDeleter, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		gen:     NewGenerator(store),
		notify:  notify,
		objects: objects,
		log:     log,
	}
}

type NewFileInput struct {
	ObjectKey         string
	OriginalName      string
	RecordingDate     *time.Time
	RecordingLocation string
	RecordingType     string
	PartialRange      string
	TotalDuration     string
	SpeakerCount      int
	SpeakerNames      string
	AdditionalInfo    string
}

type NewOrderInput struct {
	DBOrder bool
	// ForceOrderID keeps a manually assigned id instead of generating
	// one; ids are assigned exactly once.
	ForceOrderID string

	Name    string
	Email   string
	Phone   string
	Address string

	DraftFormat    models.DraftFormat
	FinalOption    models.FinalOption
	EstimatedPrice *int64
	PaymentStatus  bool
	PaymentAmount  *int64

	// Temporary marks an in-progress form submission awaiting
	// confirmation. Back-office orders are always permanent.
	Temporary bool

	Files []NewFileInput
}

// CreateOrder creates one request per file under a single order id. On
// an identifier collision the whole batch is regenerated and retried a
// few times before giving up.
func (s *Service) CreateOrder(ctx context.Context, in NewOrderInput) ([]*models.Request, error) {
	var created []*models.Request
	var err error
	for attempt := 0; attempt <= collisionRetries; attempt++ {
		created, err = s.createOnce(ctx, in)
		if !errors.Is(err, ErrIdentifierCollision) {
			break
		}
		s.log.WithField("attempt", attempt+1).Warn("order id collision, regenerating")
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, in NewOrderInput) ([]*models.Request, error) {
	var created []*models.Request
	err := s.store.CreateInOrder(ctx, func(dir Directory) ([]*models.Request, error) {
		gen := &Generator{dir: dir, now: s.gen.now}

		orderID := in.ForceOrderID
		if orderID == "" {
			var err error
			orderID, err = gen.GenerateOrderID(ctx, in.DBOrder)
			if err != nil {
				return nil, err
			}
		}

		base, err := dir.CountInOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		created = created[:0]
		for i, f := range in.Files {
			req := &models.Request{
				RequestID:         BuildRequestID(orderID, int(base)+i),
				OrderID:           orderID,
				Name:              in.Name,
				Email:             in.Email,
				Phone:             in.Phone,
				Address:           in.Address,
				RecordingDate:     f.RecordingDate,
				RecordingLocation: f.RecordingLocation,
				RecordingType:     f.RecordingType,
				PartialRange:      f.PartialRange,
				TotalDuration:     f.TotalDuration,
				SpeakerCount:      f.SpeakerCount,
				SpeakerNames:      f.SpeakerNames,
				AdditionalInfo:    f.AdditionalInfo,
				Status:            models.StatusReceived,
				OrderStatus:       models.StatusReceived,
				DraftFormat:       in.DraftFormat,
				FinalOption:       in.FinalOption,
				EstimatedPrice:    in.EstimatedPrice,
				PaymentStatus:     in.PaymentStatus,
				PaymentAmount:     in.PaymentAmount,
				IsTemporary:       in.Temporary,
			}
			created = append(created, req)
		}
		return created, nil
	})
	if err != nil {
		return nil, err
	}

	// Attach previously uploaded File rows. Best-effort: a missing row
	// means the upload was never completed and the reconciler will
	// pick up the blob later.
	for i, req := range created {
		key := in.Files[i].ObjectKey
		if key == "" {
			continue
		}
		if err := s.store.AttachFile(ctx, req.ID, key); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"request_id": req.RequestID,
				"key":        key,
			}).Warn("could not attach uploaded file")
		}
	}
	return created, nil
}

// ConfirmSubmission promotes every temporary request of the order the
// given request belongs to, then fires the first (received)
// notification. Promotion succeeds even when the notification fails.
func (s *Service) ConfirmSubmission(ctx context.Context, requestID string) (*ChangeResult, error) {
	req, err := s.store.RequestByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.store.Siblings(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		if !siblings[i].IsTemporary {
			continue
		}
		siblings[i].IsTemporary = false
		if err := s.store.SaveRequest(ctx, &siblings[i]); err != nil {
			return nil, err
		}
	}

	result := &ChangeResult{Request: req}
	if s.notify != nil {
		result.NotificationSent, result.NotificationErrors =
			s.notify.NotifyStatusChange(ctx, req, models.StatusReceived, "")
	}
	return result, nil
}

type ChangeStatusInput struct {
	RequestID string
	Level     StatusLevel
	NewStatus models.Status
	Reason    string
	// Enforce applies the transition whitelist. Administrative
	// overrides pass false and skip the guard entirely.
	Enforce bool
}

type ChangeResult struct {
	Request            *models.Request
	NotificationSent   bool
	NotificationErrors []string
}

// ChangeStatus mutates the request- or order-level status, records the
// audit trail and triggers the notification coordinator. The status
// change itself commits regardless of the notification outcome.
func (s *Service) ChangeStatus(ctx context.Context, in ChangeStatusInput) (*ChangeResult, error) {
	req, err := s.store.RequestByRequestID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	current := req.Status
	if in.Level == LevelOrder {
		current = req.OrderStatus
	}

	if in.Enforce && !CanChangeTo(current, in.NewStatus) {
		return nil, &InvalidTransitionError{From: current, To: in.NewStatus}
	}
	if reasonRequired(in.NewStatus) && in.Reason == "" {
		return nil, ErrReasonRequired
	}

	targets := []*models.Request{req}
	if in.Level == LevelOrder {
		siblings, err := s.store.Siblings(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		targets = targets[:0]
		for i := range siblings {
			targets = append(targets, &siblings[i])
		}
	}

	for _, t := range targets {
		from := t.Status
		if in.Level == LevelOrder {
			from = t.OrderStatus
			t.OrderStatus = in.NewStatus
		} else {
			t.Status = in.NewStatus
		}
		if in.Reason != "" {
			t.StatusReason = in.Reason
		}
		if in.NewStatus == models.StatusRefunded {
			// Parse failures leave the field unset.
			if amount, ok := ParseRefundAmount(in.Reason); ok {
				t.RefundAmount = &amount
			}
		}
		if err := s.store.SaveRequest(ctx, t); err != nil {
			return nil, err
		}
		if err := s.store.AppendStatusChange(ctx, &models.StatusChangeLog{
			RequestRef: t.ID,
			FromStatus: from,
			ToStatus:   in.NewStatus,
			Reason:     in.Reason,
		}); err != nil {
			// The audit row is secondary to the mutation; log and move on.
			s.log.WithError(err).WithField("request_id", t.RequestID).Error("status change log append failed")
		}
		if t.RequestID == req.RequestID {
			*req = *t
		}
	}

	result := &ChangeResult{Request: req}
	if s.notify != nil {
		result.NotificationSent, result.NotificationErrors =
			s.notify.NotifyStatusChange(ctx, req, in.NewStatus, current)
	}
	return result, nil
}

// DeleteOrders removes every permanent request of the given orders,
// attempting the object-store delete for each attachment first. A blob
// that will not delete is logged and left for the reconciler; the
// relational delete always proceeds.
func (s *Service) DeleteOrders(ctx context.Context, orderIDs []string) (requests int, files int, errs []string) {
	for _, orderID := range orderIDs {
		siblings, err := s.store.Siblings(ctx, orderID)
		if err != nil {
			errs = append(errs, orderID+": "+err.Error())
			continue
		}
		if len(siblings) == 0 {
			errs = append(errs, orderID+": "+ErrOrderNotFound.Error())
			continue
		}
		for i := range siblings {
			req := &siblings[i]
			if req.IsTemporary {
				continue
			}
			attachments, err := s.store.FilesOfRequest(ctx, req.ID)
			if err != nil {
				errs = append(errs, req.RequestID+": "+err.Error())
			}
			for _, f := range attachments {
				if s.objects != nil {
					if err := s.objects.Delete(ctx, f.ObjectKey); err != nil {
						s.log.WithError(err).WithField("key", f.ObjectKey).Error("object delete failed")
						continue
					}
				}
				files++
			}
			if err := s.store.DeleteRequestRow(ctx, req.ID); err != nil {
				errs = append(errs, req.RequestID+": "+err.Error())
				continue
			}
			requests++
		}
	}
	return requests, files, errs
}
