package orders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procendp/stenodesk/internal/models"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	nextID     uint
	requests   map[string]*models.Request // by request id
	files      map[string]*models.File    // by object key
	changeLogs []models.StatusChangeLog

	failCreates int // fail the first N CreateInOrder calls with a collision
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*models.Request),
		files:    make(map[string]*models.File),
	}
}

func (m *memStore) ordered() []*models.Request {
	out := make([]*models.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) LatestOrderID(_ context.Context, dbOrder bool) (string, error) {
	var latest *models.Request
	for _, r := range m.ordered() {
		if MatchesOrderShape(r.OrderID, dbOrder) {
			latest = r
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.OrderID, nil
}

func (m *memStore) CountInOrder(_ context.Context, orderID string) (int64, error) {
	var n int64
	for _, r := range m.requests {
		if r.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateInOrder(ctx context.Context, build func(dir Directory) ([]*models.Request, error)) error {
	reqs, err := build(m)
	if err != nil {
		return err
	}
	if m.failCreates > 0 {
		m.failCreates--
		return ErrIdentifierCollision
	}
	for _, r := range reqs {
		if _, dup := m.requests[r.RequestID]; dup {
			return ErrIdentifierCollision
		}
	}
	for _, r := range reqs {
		m.nextID++
		r.ID = m.nextID
		r.CreatedAt = time.Now()
		m.requests[r.RequestID] = r
	}
	return nil
}

func (m *memStore) RequestByRequestID(_ context.Context, requestID string) (*models.Request, error) {
	r, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Siblings(_ context.Context, orderID string) ([]models.Request, error) {
	var out []models.Request
	for _, r := range m.ordered() {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SaveRequest(_ context.Context, req *models.Request) error {
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *memStore) AppendStatusChange(_ context.Context, entry *models.StatusChangeLog) error {
	m.changeLogs = append(m.changeLogs, *entry)
	return nil
}

func (m *memStore) AttachFile(_ context.Context, requestRow uint, objectKey string) error {
	f, ok := m.files[objectKey]
	if !ok {
		return errors.New("no file row")
	}
	row := requestRow
	f.RequestRef = &row
	return nil
}

func (m *memStore) FilesOfRequest(_ context.Context, requestRow uint) ([]models.File, error) {
	var out []models.File
	for _, f := range m.files {
		if f.RequestRef != nil && *f.RequestRef == requestRow {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memStore) DeleteRequestRow(_ context.Context, requestRow uint) error {
	for id, r := range m.requests {
		if r.ID == requestRow {
			delete(m.requests, id)
		}
	}
	for key, f := range m.files {
		if f.RequestRef != nil && *f.RequestRef == requestRow {
			delete(m.files, key)
		}
	}
	return nil
}

func (m *memStore) ListRequests(_ context.Context, includeTemporary bool) ([]models.Request, error) {
	ordered := m.ordered()
	var out []models.Request
	for i := len(ordered) - 1; i >= 0; i-- {
		r := ordered[i]
		if !includeTemporary && r.IsTemporary {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

type fakeNotifier struct {
	calls []models.Status
	sent  bool
	errs  []string
}

func (n *fakeNotifier) NotifyStatusChange(_ context.Context, _ *models.Request, newStatus, _ models.Status) (bool, []string) {
	n.calls = append(n.calls, newStatus)
	return n.sent, n.errs
}

type fakeDeleter struct {
	deleted []string
	fail    map[string]bool
}

func (d *fakeDeleter) Delete(_ context.Context, key string) error {
	if d.fail[key] {
		return errors.New("storage unavailable")
	}
	d.deleted = append(d.deleted, key)
	return nil
}

func newTestService(store *memStore, notify Notifier, objects ObjectDeleter) *Service {
	svc := NewService(store, notify, objects, nil)
	svc.gen.now = func() time.Time {
		return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCreateOrder_SharedOrderIDAndSequencedRequests(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name:  "홍길동",
		Email: "hong@example.com",
		Files: []NewFileInput{
			{OriginalName: "a.mp3"},
			{OriginalName: "b.mp3"},
			{OriginalName: "c.mp3"},
		},
		Temporary: true,
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	assert.Equal(t, "25011500", created[0].OrderID)
	assert.Equal(t, "2501150000", created[0].RequestID)
	assert.Equal(t, "2501150001", created[1].RequestID)
	assert.Equal(t, "2501150002", created[2].RequestID)
	for _, r := range created {
		assert.True(t, r.IsTemporary)
		assert.Equal(t, models.StatusReceived, r.Status)
		assert.Equal(t, models.StatusReceived, r.OrderStatus)
	}
}

func TestCreateOrder_SecondOrderIncrementsCounter(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	first, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "b", Email: "b@example.com",
		Files: []NewFileInput{{OriginalName: "b.mp3"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "25011500", first[0].OrderID)
	assert.Equal(t, "25011501", second[0].OrderID)
}

func TestCreateOrder_BackOfficePrefix(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		DBOrder: true,
		Name:    "담당자", Email: "staff@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "DB2501150000", created[0].OrderID)
	assert.Equal(t, "DB250115000000", created[0].RequestID)
}

func TestCreateOrder_RetriesOnCollision(t *testing.T) {
	store := newMemStore()
	store.failCreates = 2
	svc := newTestService(store, nil, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
}

func TestCreateOrder_GivesUpAfterRetries(t *testing.T) {
	store := newMemStore()
	store.failCreates = 10
	svc := newTestService(store, nil, nil)

	_, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})
	assert.ErrorIs(t, err, ErrIdentifierCollision)
}

func TestCreateOrder_ForcedOrderIDKept(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		ForceOrderID: "25011477",
		Name:         "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "25011477", created[0].OrderID)
	assert.Equal(t, "2501147700", created[0].RequestID)

	// Adding to the same order continues the sequence instead of
	// reassigning anything.
	more, err := svc.CreateOrder(context.Background(), NewOrderInput{
		ForceOrderID: "25011477",
		Name:         "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "b.mp3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2501147701", more[0].RequestID)
}

func TestConfirmSubmission_PromotesWholeOrder(t *testing.T) {
	store := newMemStore()
	notify := &fakeNotifier{sent: true}
	svc := newTestService(store, notify, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files:     []NewFileInput{{OriginalName: "a.mp3"}, {OriginalName: "b.mp3"}},
		Temporary: true,
	})
	require.NoError(t, err)

	result, err := svc.ConfirmSubmission(context.Background(), created[0].RequestID)
	require.NoError(t, err)
	assert.True(t, result.NotificationSent)

	siblings, _ := store.Siblings(context.Background(), created[0].OrderID)
	for _, s := range siblings {
		assert.False(t, s.IsTemporary)
	}
	require.Len(t, notify.calls, 1)
	assert.Equal(t, models.StatusReceived, notify.calls[0])
}

func TestConfirmSubmission_SucceedsWhenNotificationFails(t *testing.T) {
	store := newMemStore()
	notify := &fakeNotifier{sent: false, errs: []string{"email: provider down"}}
	svc := newTestService(store, notify, nil)

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files:     []NewFileInput{{OriginalName: "a.mp3"}},
		Temporary: true,
	})
	require.NoError(t, err)

	result, err := svc.ConfirmSubmission(context.Background(), created[0].RequestID)
	require.NoError(t, err)
	assert.False(t, result.NotificationSent)
	assert.NotEmpty(t, result.NotificationErrors)

	siblings, _ := store.Siblings(context.Background(), created[0].OrderID)
	assert.False(t, siblings[0].IsTemporary)
}

func TestChangeStatus_RequestLevel(t *testing.T) {
	store := newMemStore()
	notify := &fakeNotifier{sent: true}
	svc := newTestService(store, notify, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}, {OriginalName: "b.mp3"}},
	})

	result, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusPaymentCompleted,
		Enforce:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentCompleted, result.Request.Status)
	assert.Equal(t, models.StatusReceived, result.Request.OrderStatus)

	// The sibling is untouched at the request level.
	sibling, _ := store.RequestByRequestID(context.Background(), created[1].RequestID)
	assert.Equal(t, models.StatusReceived, sibling.Status)

	require.Len(t, store.changeLogs, 1)
	assert.Equal(t, models.StatusReceived, store.changeLogs[0].FromStatus)
	assert.Equal(t, models.StatusPaymentCompleted, store.changeLogs[0].ToStatus)
}

func TestChangeStatus_OrderLevelFansOut(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeNotifier{sent: true}, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}, {OriginalName: "b.mp3"}, {OriginalName: "c.mp3"}},
	})

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[1].RequestID,
		Level:     LevelOrder,
		NewStatus: models.StatusPaymentCompleted,
		Enforce:   true,
	})
	require.NoError(t, err)

	siblings, _ := store.Siblings(context.Background(), created[0].OrderID)
	for _, s := range siblings {
		assert.Equal(t, models.StatusPaymentCompleted, s.OrderStatus)
		assert.Equal(t, models.StatusReceived, s.Status, "per-file status is independent")
	}
	assert.Len(t, store.changeLogs, 3, "one audit row per sibling")
}

func TestChangeStatus_EnforcedGuardRejectsIllegalMove(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusSent,
		Enforce:   true,
	})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StatusReceived, invalid.From)
	assert.Equal(t, models.StatusSent, invalid.To)

	// The override path skips the guard entirely.
	result, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusSent,
		Enforce:   false,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, result.Request.Status)
}

func TestChangeStatus_ReasonRequiredEvenWhenNotEnforced(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusCancelled,
		Enforce:   false,
	})
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestChangeStatus_RefundAmountParsedFromReason(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})

	result, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusRefunded,
		Reason:    "고객 요청. 환불금액:45,000원",
		Enforce:   false,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Request.RefundAmount)
	assert.Equal(t, int64(45000), *result.Request.RefundAmount)
}

func TestChangeStatus_CommitsDespiteNotificationFailure(t *testing.T) {
	store := newMemStore()
	notify := &fakeNotifier{sent: false, errs: []string{"email: timeout"}}
	svc := newTestService(store, notify, nil)

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{{OriginalName: "a.mp3"}},
	})

	result, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		RequestID: created[0].RequestID,
		Level:     LevelRequest,
		NewStatus: models.StatusPaymentCompleted,
		Enforce:   true,
	})
	require.NoError(t, err)
	assert.False(t, result.NotificationSent)
	assert.Equal(t, []string{"email: timeout"}, result.NotificationErrors)

	persisted, _ := store.RequestByRequestID(context.Background(), created[0].RequestID)
	assert.Equal(t, models.StatusPaymentCompleted, persisted.Status)
}

func TestDeleteOrders_BestEffortObjectDeletes(t *testing.T) {
	store := newMemStore()
	deleter := &fakeDeleter{fail: map[string]bool{"uploads/b.mp3": true}}
	svc := newTestService(store, nil, deleter)

	store.files["uploads/a.mp3"] = &models.File{ID: 1, ObjectKey: "uploads/a.mp3"}
	store.files["uploads/b.mp3"] = &models.File{ID: 2, ObjectKey: "uploads/b.mp3"}

	created, err := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files: []NewFileInput{
			{ObjectKey: "uploads/a.mp3", OriginalName: "a.mp3"},
			{ObjectKey: "uploads/b.mp3", OriginalName: "b.mp3"},
		},
	})
	require.NoError(t, err)

	requests, files, errs := svc.DeleteOrders(context.Background(), []string{created[0].OrderID})
	assert.Equal(t, 2, requests, "row deletion proceeds past a failed blob delete")
	assert.Equal(t, 1, files)
	assert.Empty(t, errs)
	assert.Empty(t, store.requests)
}

func TestDeleteOrders_SkipsTemporaryAndReportsUnknown(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, &fakeDeleter{})

	created, _ := svc.CreateOrder(context.Background(), NewOrderInput{
		Name: "a", Email: "a@example.com",
		Files:     []NewFileInput{{OriginalName: "a.mp3"}},
		Temporary: true,
	})

	requests, _, errs := svc.DeleteOrders(context.Background(), []string{created[0].OrderID, "19990101"})
	assert.Equal(t, 0, requests, "temporary submissions are not deletable orders")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "19990101")
	assert.Contains(t, errs[0], ErrOrderNotFound.Error())

	_, err := store.RequestByRequestID(context.Background(), created[0].RequestID)
	assert.NoError(t, err)
}
