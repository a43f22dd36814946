package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procendp/stenodesk/internal/models"
	"github.com/procendp/stenodesk/internal/notification"
	"github.com/procendp/stenodesk/internal/orders"
)

// stubOrderStore is a minimal in-memory orders.Store for routing the
// handlers through a real order service.
type stubOrderStore struct {
	nextID   uint
	requests map[string]*models.Request
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{requests: make(map[string]*models.Request)}
}

func (m *stubOrderStore) seed(req models.Request) {
	m.nextID++
	req.ID = m.nextID
	m.requests[req.RequestID] = &req
}

func (m *stubOrderStore) ordered() []*models.Request {
	out := make([]*models.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *stubOrderStore) LatestOrderID(_ context.Context, dbOrder bool) (string, error) {
	var latest string
	for _, r := range m.ordered() {
		if orders.MatchesOrderShape(r.OrderID, dbOrder) {
			latest = r.OrderID
		}
	}
	return latest, nil
}

func (m *stubOrderStore) CountInOrder(_ context.Context, orderID string) (int64, error) {
	var n int64
	for _, r := range m.requests {
		if r.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (m *stubOrderStore) CreateInOrder(_ context.Context, build func(dir orders.Directory) ([]*models.Request, error)) error {
	reqs, err := build(m)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if _, dup := m.requests[r.RequestID]; dup {
			return orders.ErrIdentifierCollision
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

func (m *stubOrderStore) RequestByRequestID(_ context.Context, requestID string) (*models.Request, error) {
	r, ok := m.requests[requestID]
	if !ok {
		return nil, orders.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *stubOrderStore) Siblings(_ context.Context, orderID string) ([]models.Request, error) {
	var out []models.Request
	for _, r := range m.ordered() {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *stubOrderStore) SaveRequest(_ context.Context, req *models.Request) error {
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *stubOrderStore) AppendStatusChange(_ context.Context, _ *models.StatusChangeLog) error {
	return nil
}

func (m *stubOrderStore) AttachFile(_ context.Context, _ uint, _ string) error { return nil }

func (m *stubOrderStore) FilesOfRequest(_ context.Context, _ uint) ([]models.File, error) {
	return nil, nil
}

func (m *stubOrderStore) DeleteRequestRow(_ context.Context, requestRow uint) error {
	for id, r := range m.requests {
		if r.ID == requestRow {
			delete(m.requests, id)
		}
	}
	return nil
}

func (m *stubOrderStore) ListRequests(_ context.Context, _ bool) ([]models.Request, error) {
	return nil, nil
}

// stubHistoryStore backs the coordinator for the send-history endpoint.
type stubHistoryStore struct {
	counts   map[string]int64
	lastSent *time.Time
}

func (s *stubHistoryStore) TemplateFor(_ context.Context, _ models.Status, _ notification.Channel) (*models.Template, error) {
	return nil, nil
}

func (s *stubHistoryStore) Siblings(_ context.Context, _ string) ([]models.Request, error) {
	return nil, nil
}

func (s *stubHistoryStore) AppendSendLog(_ context.Context, _ *models.SendLog) error { return nil }

func (s *stubHistoryStore) SendHistory(_ context.Context, q notification.HistoryQuery) (int64, *time.Time, error) {
	return s.counts[string(q.EmailType)], s.lastSent, nil
}

func (s *stubHistoryStore) MarkNotificationSent(_ context.Context, _ uint, _ models.Status, _ bool) error {
	return nil
}

func (s *stubHistoryStore) TranscriptFileOf(_ context.Context, _ *models.Request) (*models.File, error) {
	return nil, nil
}

type stubEmail struct{}

func (stubEmail) SendEmail(_ context.Context, _ notification.EmailMessage) (notification.Result, error) {
	return notification.Result{MessageID: "ok"}, nil
}

type stubSMS struct{}

func (stubSMS) SendSMS(_ context.Context, _ notification.SMSMessage) (notification.Result, error) {
	return notification.Result{MessageID: "ok"}, nil
}

type payload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) payload {
	t.Helper()
	var p payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestCreateRequests(t *testing.T) {
	store := newStubOrderStore()
	Orders = orders.NewService(store, nil, nil, nil)

	body := `{
		"name": "홍길동",
		"email": "hong@example.com",
		"phone": "010-1111-2222",
		"files": [
			{"originalName": "a.mp3", "totalDuration": "1:00:00"},
			{"originalName": "b.mp3", "totalDuration": "0:30:00"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateRequests(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodePayload(t, rec)
	require.True(t, p.Success)

	var data struct {
		OrderID  string           `json:"orderId"`
		Requests []models.Request `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(p.Data, &data))
	require.Len(t, data.Requests, 2)
	assert.Equal(t, data.OrderID, data.Requests[0].OrderID)
	assert.Equal(t, data.OrderID+"00", data.Requests[0].RequestID)
	assert.Equal(t, data.OrderID+"01", data.Requests[1].RequestID)
	assert.True(t, data.Requests[0].IsTemporary, "public intake starts temporary")
}

func TestCreateRequests_RejectsIncompleteInput(t *testing.T) {
	Orders = orders.NewService(newStubOrderStore(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(`{"name": "홍길동", "files": []}`))
	rec := httptest.NewRecorder()
	CreateRequests(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodePayload(t, rec).Success)
}

func TestCreateRequests_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	rec := httptest.NewRecorder()
	CreateRequests(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func changeStatusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/requests/{requestID}/status", ChangeStatus)
	return mux
}

func TestChangeStatus(t *testing.T) {
	store := newStubOrderStore()
	store.seed(models.Request{
		RequestID:   "2501150000",
		OrderID:     "25011500",
		Email:       "hong@example.com",
		Status:      models.StatusReceived,
		OrderStatus: models.StatusReceived,
	})
	Orders = orders.NewService(store, nil, nil, nil)

	body := `{"status": "payment_completed", "level": "request"}`
	req := httptest.NewRequest(http.MethodPatch, "/requests/2501150000/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	changeStatusMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePayload(t, rec)
	require.True(t, p.Success)
	assert.Equal(t, models.StatusPaymentCompleted, store.requests["2501150000"].Status)
	assert.Equal(t, models.StatusReceived, store.requests["2501150000"].OrderStatus, "a request-level change leaves the order status alone")
}

func TestChangeStatus_EnforcedGuardRejectsSkips(t *testing.T) {
	store := newStubOrderStore()
	store.seed(models.Request{
		RequestID:   "2501150000",
		OrderID:     "25011500",
		Status:      models.StatusReceived,
		OrderStatus: models.StatusReceived,
	})
	Orders = orders.NewService(store, nil, nil, nil)

	body := `{"status": "sent", "level": "request"}`
	req := httptest.NewRequest(http.MethodPatch, "/requests/2501150000/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	changeStatusMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodePayload(t, rec)
	assert.False(t, p.Success)
	assert.Contains(t, p.Message, "received")
	assert.Contains(t, p.Message, "sent")

	// The same jump passes with the guard switched off.
	body = `{"status": "sent", "level": "request", "enforce": false}`
	req = httptest.NewRequest(http.MethodPatch, "/requests/2501150000/status", strings.NewReader(body))
	rec = httptest.NewRecorder()
	changeStatusMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusSent, store.requests["2501150000"].Status)
}

func TestChangeStatus_ReasonRequired(t *testing.T) {
	store := newStubOrderStore()
	store.seed(models.Request{
		RequestID:   "2501150000",
		OrderID:     "25011500",
		Status:      models.StatusReceived,
		OrderStatus: models.StatusReceived,
	})
	Orders = orders.NewService(store, nil, nil, nil)

	body := `{"status": "cancelled", "level": "request", "enforce": false}`
	req := httptest.NewRequest(http.MethodPatch, "/requests/2501150000/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	changeStatusMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodePayload(t, rec).Message, "reason")
}

func TestChangeStatus_UnknownRequest(t *testing.T) {
	Orders = orders.NewService(newStubOrderStore(), nil, nil, nil)

	body := `{"status": "payment_completed", "level": "request"}`
	req := httptest.NewRequest(http.MethodPatch, "/requests/9999999999/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	changeStatusMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckSendHistory(t *testing.T) {
	last := time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)
	store := &stubHistoryStore{
		counts:   map[string]int64{"quotation_guide": 2},
		lastSent: &last,
	}
	Notify = notification.NewCoordinator(store, stubEmail{}, stubSMS{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/send-history?orderId=25011500&emailType=quotation_guide&paymentAmount=75000", nil)
	rec := httptest.NewRecorder()
	CheckSendHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePayload(t, rec)
	require.True(t, p.Success)

	var result notification.HistoryResult
	require.NoError(t, json.Unmarshal(p.Data, &result))
	assert.True(t, result.HasDuplicate)
	assert.Equal(t, int64(2), result.PriorSends)
}

func TestCheckSendHistory_RequiresEmailType(t *testing.T) {
	Notify = notification.NewCoordinator(&stubHistoryStore{}, stubEmail{}, stubSMS{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/send-history?orderId=25011500", nil)
	rec := httptest.NewRecorder()
	CheckSendHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
