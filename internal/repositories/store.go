package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/procendp/stenodesk/internal/models"
	"github.com/procendp/stenodesk/internal/notification"
	"github.com/procendp/stenodesk/internal/orders"
	"github.com/procendp/stenodesk/internal/reconciler"
)

// Store is the gorm-backed implementation of the order, notification
// and reconciler store interfaces.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- orders.Directory ---

const (
	customerOrderRegexp = `^\d{8}$`
	dbOrderRegexp       = `^DB\d{10}$`
)

func (s *Store) LatestOrderID(ctx context.Context, dbOrder bool) (string, error) {
	pattern := customerOrderRegexp
	if dbOrder {
		pattern = dbOrderRegexp
	}
	var req models.Request
	err := s.db.WithContext(ctx).
		Where("order_id ~ ?", pattern).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return req.OrderID, nil
}

func (s *Store) CountInOrder(ctx context.Context, orderID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("order_id = ?", orderID).
		Count(&n).Error
	return n, err
}

// --- orders.Store ---

// CreateInOrder runs generation and insert in one serializable
// transaction. Duplicate request ids and serialization failures both
// come back as ErrIdentifierCollision so the caller regenerates.
func (s *Store) CreateInOrder(ctx context.Context, build func(dir orders.Directory) ([]*models.Request, error)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reqs, err := build(&Store{db: tx})
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			return nil
		}
		return tx.Create(reqs).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505: unique violation, 40001: serialization failure.
		if pgErr.Code == "23505" || pgErr.Code == "40001" {
			return orders.ErrIdentifierCollision
		}
	}
	return err
}

func (s *Store) RequestByRequestID(ctx context.Context, requestID string) (*models.Request, error) {
	var req models.Request
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orders.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) Siblings(ctx context.Context, orderID string) ([]models.Request, error) {
	var reqs []models.Request
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&reqs).Error
	return reqs, err
}

func (s *Store) SaveRequest(ctx context.Context, req *models.Request) error {
	return s.db.WithContext(ctx).Save(req).Error
}

func (s *Store) AppendStatusChange(ctx context.Context, entry *models.StatusChangeLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) AttachFile(ctx context.Context, requestRow uint, objectKey string) error {
	res := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("object_key = ?", objectKey).
		Update("request_id", requestRow)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no file row for key %s", objectKey)
	}
	return nil
}

func (s *Store) FilesOfRequest(ctx context.Context, requestRow uint) ([]models.File, error) {
	var files []models.File
	err := s.db.WithContext(ctx).Where("request_id = ?", requestRow).Find(&files).Error
	return files, err
}

// DeleteRequestRow removes a request and its attachment rows. The
// object-store side is the caller's concern.
func (s *Store) DeleteRequestRow(ctx context.Context, requestRow uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", requestRow).Delete(&models.File{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Request{}, requestRow).Error
	})
}

func (s *Store) ListRequests(ctx context.Context, includeTemporary bool) ([]models.Request, error) {
	q := s.db.WithContext(ctx).
		Preload("Files").
		Preload("TranscriptFile").
		Order("created_at DESC")
	if !includeTemporary {
		q = q.Where("is_temporary = ?", false)
	}
	var reqs []models.Request
	err := q.Find(&reqs).Error
	return reqs, err
}

// --- notification.Store ---

func (s *Store) TemplateFor(ctx context.Context, status models.Status, channel notification.Channel) (*models.Template, error) {
	var tpl models.Template
	err := s.db.WithContext(ctx).
		Where("name LIKE ? AND type = ?", "%"+string(status)+"%", string(channel)).
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) AppendSendLog(ctx context.Context, entry *models.SendLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) SendHistory(ctx context.Context, q notification.HistoryQuery) (int64, *time.Time, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.SendLog{}).
		Where("email_type = ? AND success = ?", string(q.EmailType), true)
	if q.EmailType.AmountBearing() {
		tx = tx.Where("order_id = ?", q.OrderID)
		if q.PaymentAmount != nil {
			tx = tx.Where("payment_amount = ?", *q.PaymentAmount)
		} else {
			tx = tx.Where("payment_amount IS NULL")
		}
	} else {
		tx = tx.Where("request_id = ?", q.RequestID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var last models.SendLog
	if err := tx.Order("created_at DESC").First(&last).Error; err != nil {
		return count, nil, nil
	}
	return count, &last.CreatedAt, nil
}

func (s *Store) MarkNotificationSent(ctx context.Context, requestRow uint, toStatus models.Status, sent bool) error {
	var entry models.StatusChangeLog
	err := s.db.WithContext(ctx).
		Where("request_id = ? AND to_status = ?", requestRow, string(toStatus)).
		Order("changed_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&entry).
		Update("notification_sent", sent).Error
}

func (s *Store) TranscriptFileOf(ctx context.Context, req *models.Request) (*models.File, error) {
	if req.TranscriptFileID == nil {
		return nil, nil
	}
	var file models.File
	err := s.db.WithContext(ctx).First(&file, *req.TranscriptFileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// --- reconciler.Store ---

func (s *Store) transcriptRefCounts(ctx context.Context) (map[uint]int64, error) {
	type refCount struct {
		TranscriptFileID uint
		N                int64
	}
	var counts []refCount
	err := s.db.WithContext(ctx).
		Model(&models.Request{}).
		Select("transcript_file_id, COUNT(*) AS n").
		Where("transcript_file_id IS NOT NULL").
		Group("transcript_file_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(counts))
	for _, c := range counts {
		out[c.TranscriptFileID] = c.N
	}
	return out, nil
}

func toFileRow(f models.File, refs map[uint]int64) reconciler.FileRow {
	return reconciler.FileRow{
		ID:             f.ID,
		ObjectKey:      f.ObjectKey,
		OriginalName:   f.OriginalName,
		HasRequest:     f.RequestRef != nil,
		TranscriptRefs: refs[f.ID],
		CreatedAt:      f.CreatedAt,
	}
}

func (s *Store) FileRows(ctx context.Context) ([]reconciler.FileRow, error) {
	var files []models.File
	if err := s.db.WithContext(ctx).Find(&files).Error; err != nil {
		return nil, err
	}
	refs, err := s.transcriptRefCounts(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]reconciler.FileRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, toFileRow(f, refs))
	}
	return rows, nil
}

func (s *Store) IsOrphanNow(ctx context.Context, fileID uint) (bool, error) {
	var file models.File
	if err := s.db.WithContext(ctx).First(&file, fileID).Error; err != nil {
		return false, err
	}
	if file.RequestRef != nil {
		return false, nil
	}
	var refs int64
	err := s.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("transcript_file_id = ?", fileID).
		Count(&refs).Error
	if err != nil {
		return false, err
	}
	return refs == 0, nil
}

func (s *Store) DeleteFileRow(ctx context.Context, fileID uint) error {
	return s.db.WithContext(ctx).Delete(&models.File{}, fileID).Error
}

func (s *Store) TemporaryRequestsBefore(ctx context.Context, cutoff time.Time) ([]models.Request, error) {
	var reqs []models.Request
	err := s.db.WithContext(ctx).
		Where("is_temporary = ? AND created_at < ?", true, cutoff).
		Find(&reqs).Error
	return reqs, err
}

func (s *Store) UnattachedFilesBefore(ctx context.Context, cutoff time.Time) ([]reconciler.FileRow, error) {
	var files []models.File
	err := s.db.WithContext(ctx).
		Where("request_id IS NULL AND created_at < ?", cutoff).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	refs, err := s.transcriptRefCounts(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]reconciler.FileRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, toFileRow(f, refs))
	}
	return rows, nil
}

// --- upload flow helpers ---

func (s *Store) CreateFile(ctx context.Context, file *models.File) error {
	return s.db.WithContext(ctx).Create(file).Error
}

func (s *Store) FileByKey(ctx context.Context, key string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).Where("object_key = ?", key).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}
