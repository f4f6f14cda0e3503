package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/club-payments/internal/failover"
	"github.com/iliyamo/club-payments/internal/model"
	"github.com/iliyamo/club-payments/internal/repository"
)

// memStore is a PaymentStore that fails every call with err when set.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Payment
	order  []int64
	err    error
}

func newMemStore() *memStore { return &memStore{byID: map[int64]*model.Payment{}} }

func (m *memStore) Save(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	_ = p.AssignID(m.nextID)
	m.byID[m.nextID] = p
	m.order = append(m.order, m.nextID)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) FindAll(context.Context) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []*model.Payment{}
	for _, id := range m.order {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	id, _ := p.ID()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	m.byID[id] = p
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.byID, id)
	return nil
}

type recordedEvents struct{ payments []*model.Payment }

func (r *recordedEvents) PaymentRecorded(_ context.Context, p *model.Payment) {
	r.payments = append(r.payments, p)
}

func serve(t *testing.T, h echo.HandlerFunc, method, path, route, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(route)
	if len(params) > 0 {
		c.SetParamNames("id")
		c.SetParamValues(params...)
	}
	require.NoError(t, h(c))
	return rec
}

const clubNight = `{
  "tickets": [{"description": "VIP", "unit_price": "30.00"}],
  "consumables": [{"description": "Beer", "unit_price": 5}],
  "coat_check": {"description": "Coat", "unit_price": "2"}
}`

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreatePayment(t *testing.T) {
	store, events := newMemStore(), &recordedEvents{}
	h := NewPaymentHandler(store, events, zerolog.Nop())

	rec := serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", clubNight)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "37.00", body["total"])
	assert.Equal(t, "Coat", body["coat_check"].(map[string]any)["description"])
	require.Len(t, events.payments, 1)
}

func TestCreatePaymentValidation(t *testing.T) {
	h := NewPaymentHandler(newMemStore(), nil, zerolog.Nop())

	for name, body := range map[string]string{
		"malformed":      `{"tickets":`,
		"no description": `{"tickets":[{"description":" ","unit_price":"1"}]}`,
		"negative price": `{"consumables":[{"description":"Refund","unit_price":"-3"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEmptyPaymentIsAccepted(t *testing.T) {
	h := NewPaymentHandler(newMemStore(), nil, zerolog.Nop())
	rec := serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0.00", decode(t, rec)["total"])
}

func TestGetPayment(t *testing.T) {
	store := newMemStore()
	h := NewPaymentHandler(store, nil, zerolog.Nop())
	serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", clubNight)

	rec := serve(t, h.GetPayment, http.MethodGet, "/v1/payments/1", "/v1/payments/:id", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "37.00", decode(t, rec)["total"])

	rec = serve(t, h.GetPayment, http.MethodGet, "/v1/payments/2", "/v1/payments/:id", "", "2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h.GetPayment, http.MethodGet, "/v1/payments/x", "/v1/payments/:id", "", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryPaymentResponse(t *testing.T) {
	resp := toResponse(model.NewSummary(0, d("12.5")))
	require.NotNil(t, resp.ID)
	assert.EqualValues(t, 0, *resp.ID)
	assert.True(t, resp.Summary)
	assert.Equal(t, "12.50", resp.Total)
	assert.Empty(t, resp.Tickets)
}

func TestListPayments(t *testing.T) {
	h := NewPaymentHandler(newMemStore(), nil, zerolog.Nop())
	serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", clubNight)
	serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", `{}`)

	rec := serve(t, h.ListPayments, http.MethodGet, "/v1/payments", "/v1/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
}

func TestUpdateAndDeletePayment(t *testing.T) {
	store := newMemStore()
	h := NewPaymentHandler(store, nil, zerolog.Nop())
	serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", clubNight)

	rec := serve(t, h.UpdatePayment, http.MethodPut, "/v1/payments/1", "/v1/payments/:id",
		`{"tickets":[{"description":"General","unit_price":"10"}]}`, "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10.00", decode(t, rec)["total"])

	rec = serve(t, h.UpdatePayment, http.MethodPut, "/v1/payments/9", "/v1/payments/:id", `{}`, "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h.DeletePayment, http.MethodDelete, "/v1/payments/1", "/v1/payments/:id", "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(t, h.DeletePayment, http.MethodDelete, "/v1/payments/1", "/v1/payments/:id", "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStoreErrorMapping(t *testing.T) {
	store := newMemStore()
	h := NewPaymentHandler(store, nil, zerolog.Nop())

	store.err = &repository.StorageError{Backend: "failover", Op: "save", Err: assert.AnError}
	rec := serve(t, h.CreatePayment, http.MethodPost, "/v1/payments", "/v1/payments", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store.err = repository.ErrUnsupported
	rec = serve(t, h.UpdatePayment, http.MethodPut, "/v1/payments/1", "/v1/payments/:id", `{}`, "1")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	store.err = assert.AnError
	rec = serve(t, h.ListPayments, http.MethodGet, "/v1/payments", "/v1/payments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fixedStatus map[string]failover.Status

func (f fixedStatus) Status() map[string]failover.Status { return f }

func TestStorageStatus(t *testing.T) {
	rec := serve(t, StorageStatus(fixedStatus{"mysql": failover.Degraded, "file": failover.Healthy}),
		http.MethodGet, "/v1/storage/status", "/v1/storage/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"backends":{"mysql":"degraded","file":"healthy"}}`, rec.Body.String())

	rec = serve(t, StorageStatus(fixedStatus{"mysql": failover.Degraded, "file": failover.Degraded}),
		http.MethodGet, "/v1/storage/status", "/v1/storage/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
