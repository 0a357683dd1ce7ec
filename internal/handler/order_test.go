package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/domain/order"
	"github.com/devmaster/delivery-backoffice/internal/domain/party"
)

// --- Minimal in-memory collaborators ---

type stubCatalog struct {
	products map[int64]*catalog.Product
}

func (s *stubCatalog) Product(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubCatalog) OptionGroup(context.Context, int64) (*catalog.OptionGroup, error) {
	return nil, catalog.ErrGroupNotFound
}

func (s *stubCatalog) Option(context.Context, int64) (*catalog.Option, error) {
	return nil, catalog.ErrOptionNotFound
}

func (s *stubCatalog) GroupsByProduct(context.Context, int64) ([]catalog.OptionGroup, error) {
	return nil, nil
}

type stubParty struct{}

func (stubParty) Client(_ context.Context, id int64) (*party.Client, error) {
	if id != 1 {
		return nil, party.ErrClientNotFound
	}
	return &party.Client{ID: 1, FullName: "Ana Souza", Active: true}, nil
}

func (stubParty) Restaurant(_ context.Context, id int64) (*party.Restaurant, error) {
	if id != 10 {
		return nil, party.ErrRestaurantNotFound
	}
	return &party.Restaurant{
		ID: 10, Name: "Bella Napoli", Active: true, Open: true,
		DeliveryFee: decimal.RequireFromString("5.00"), AvgPrepMinutes: 30,
	}, nil
}

func (stubParty) Address(_ context.Context, id int64) (*party.Address, error) {
	if id != 7 {
		return nil, party.ErrAddressNotFound
	}
	return &party.Address{ID: 7, OwnerClientID: 1}, nil
}

func (stubParty) PaymentType(_ context.Context, id int64) (*party.PaymentType, error) {
	if id != 3 {
		return nil, party.ErrPaymentTypeNotFound
	}
	return &party.PaymentType{ID: 3, Name: "Credit card", Active: true}, nil
}

type stubLedger struct{}

func (stubLedger) FindByCode(context.Context, string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}

func (stubLedger) IncrementUsage(context.Context, int64) error {
	return coupon.ErrNotFound
}

type stubOrderRepo struct {
	nextID int64
	orders map[int64]*order.Order
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[int64]*order.Order)}
}

func (s *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	s.nextID++
	o.ID = s.nextID
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubOrderRepo) NumberExists(context.Context, string) (bool, error) {
	return false, nil
}

func (s *stubOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrderRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range s.orders {
		if o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *stubOrderRepo) Update(_ context.Context, o *order.Order, entry *order.HistoryEntry) error {
	stored, ok := s.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	cp := *o
	cp.History = stored.History
	if entry != nil {
		cp.History = append(cp.History, *entry)
	}
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubOrderRepo) History(_ context.Context, orderID int64) ([]order.HistoryEntry, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.History, nil
}

func (s *stubOrderRepo) ListByRestaurant(context.Context, int64, *order.Status) ([]order.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) ListByClient(context.Context, int64, *order.Status) ([]order.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) ListByPeriod(context.Context, int64, time.Time, time.Time) ([]order.Order, error) {
	return nil, nil
}

func newTestRouter() chi.Router {
	cat := &stubCatalog{products: map[int64]*catalog.Product{
		1: {ID: 1, RestaurantID: 10, Name: "Margherita",
			ListPrice: decimal.RequireFromString("25.00"), Available: true},
	}}
	svc := order.NewService(cat, stubParty{}, stubLedger{}, newStubOrderRepo())

	r := chi.NewRouter()
	NewOrderHandler(svc).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validCreateBody() createOrderRequest {
	return createOrderRequest{
		ClientID:          1,
		RestaurantID:      10,
		DeliveryAddressID: 7,
		PaymentTypeID:     3,
		Items:             []createItemRequest{{ProductID: 1, Quantity: 2}},
	}
}

// --- Tests ---

func TestCreateOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/orders", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "50.00", resp.Subtotal)
	assert.Equal(t, "5.00", resp.DeliveryFee)
	assert.Equal(t, "55.00", resp.Total)
	assert.Equal(t, "AWAITING_CONFIRMATION", resp.Status)
	assert.Equal(t, "PENDING", resp.PaymentStatus)
	assert.NotEmpty(t, resp.Number)
	require.Len(t, resp.History, 1)
	assert.Equal(t, "SYSTEM", resp.History[0].Actor)
}

func TestCreateOrderEndpoint_Errors(t *testing.T) {
	router := newTestRouter()

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no items", func(t *testing.T) {
		body := validCreateBody()
		body.Items = nil
		rec := doJSON(t, router, http.MethodPost, "/orders", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		body := validCreateBody()
		body.Items[0].ProductID = 99
		rec := doJSON(t, router, http.MethodPost, "/orders", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown coupon", func(t *testing.T) {
		body := validCreateBody()
		body.CouponCode = "NOPE"
		rec := doJSON(t, router, http.MethodPost, "/orders", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad delivery fee", func(t *testing.T) {
		body := validCreateBody()
		fee := "not-a-number"
		body.DeliveryFee = &fee
		rec := doJSON(t, router, http.MethodPost, "/orders", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/orders/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	created := doJSON(t, router, http.MethodPost, "/orders", validCreateBody())
	require.Equal(t, http.StatusCreated, created.Code)
	var o orderResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &o))

	rec = doJSON(t, router, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/orders/number/"+o.Number, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router := newTestRouter()

	created := doJSON(t, router, http.MethodPost, "/orders", validCreateBody())
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodPatch, "/orders/1/status", updateStatusRequest{Status: "CONFIRMED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIRMED", resp.Status)
	assert.NotNil(t, resp.ConfirmedAt)

	// Jumping ahead conflicts with the lifecycle.
	rec = doJSON(t, router, http.MethodPatch, "/orders/1/status", updateStatusRequest{Status: "DELIVERED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/orders/1/status", updateStatusRequest{Status: "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	router := newTestRouter()

	created := doJSON(t, router, http.MethodPost, "/orders", validCreateBody())
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodDelete, "/orders/1", cancelRequest{Reason: "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, "changed my mind", resp.CancelReason)

	// Terminal: a second cancel conflicts.
	rec = doJSON(t, router, http.MethodDelete, "/orders/1", cancelRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	router := newTestRouter()

	created := doJSON(t, router, http.MethodPost, "/orders", validCreateBody())
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodPost, "/orders/1/payment/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "APPROVED", resp.PaymentStatus)

	rec = doJSON(t, router, http.MethodPost, "/orders/1/payment/refuse", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "REFUSED", resp.PaymentStatus)
}
