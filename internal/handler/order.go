package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/devmaster/delivery-backoffice/internal/domain/order"
)

// OrderHandler handles the order endpoints.
type OrderHandler struct {
	svc *order.Service
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
	r.Get("/orders/{id}/history", h.History)
	r.Get("/orders/number/{number}", h.GetByNumber)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Cancel)
	r.Post("/orders/{id}/payment/approve", h.ApprovePayment)
	r.Post("/orders/{id}/payment/refuse", h.RefusePayment)

	r.Get("/restaurants/{id}/orders", h.ListByRestaurant)
	r.Get("/restaurants/{id}/orders/active", h.ListActive)
	r.Get("/restaurants/{id}/orders/report", h.ListByPeriod)
	r.Get("/clients/{id}/orders", h.ListByClient)
}

// --- Request / Response types ---

type createOrderRequest struct {
	ClientID          int64               `json:"client_id"`
	RestaurantID      int64               `json:"restaurant_id"`
	DeliveryAddressID int64               `json:"delivery_address_id"`
	PaymentTypeID     int64               `json:"payment_type_id"`
	CouponCode        string              `json:"coupon_code"`
	DeliveryFee       *string             `json:"delivery_fee"`
	ChangeDue         *string             `json:"change_due"`
	Notes             string              `json:"notes"`
	Items             []createItemRequest `json:"items"`
}

type createItemRequest struct {
	ProductID int64                 `json:"product_id"`
	Quantity  int                   `json:"quantity"`
	Notes     string                `json:"notes"`
	Options   []itemOptionSelection `json:"options"`
}

type itemOptionSelection struct {
	GroupID  int64 `json:"group_id"`
	OptionID int64 `json:"option_id"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID                int64               `json:"id"`
	Number            string              `json:"order_number"`
	ClientID          int64               `json:"client_id"`
	RestaurantID      int64               `json:"restaurant_id"`
	DeliveryAddressID int64               `json:"delivery_address_id"`
	PaymentTypeID     int64               `json:"payment_type_id"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"payment_status"`
	Subtotal          string              `json:"subtotal"`
	DeliveryFee       string              `json:"delivery_fee"`
	Discount          string              `json:"discount"`
	Total             string              `json:"total"`
	ChangeDue         *string             `json:"change_due,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	CancelReason      string              `json:"cancel_reason,omitempty"`
	EstimatedDelivery time.Time           `json:"estimated_delivery"`
	CreatedAt         time.Time           `json:"created_at"`
	ConfirmedAt       *time.Time          `json:"confirmed_at,omitempty"`
	PreparingAt       *time.Time          `json:"preparing_at,omitempty"`
	ReadyAt           *time.Time          `json:"ready_at,omitempty"`
	DispatchedAt      *time.Time          `json:"dispatched_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	Coupon            *redemptionResponse `json:"coupon,omitempty"`
	Items             []itemResponse      `json:"items,omitempty"`
	History           []historyResponse   `json:"history,omitempty"`
}

type itemResponse struct {
	ID        int64                `json:"id"`
	ProductID int64                `json:"product_id"`
	Quantity  int                  `json:"quantity"`
	UnitPrice string               `json:"unit_price"`
	Subtotal  string               `json:"subtotal"`
	Notes     string               `json:"notes,omitempty"`
	Options   []itemOptionResponse `json:"options,omitempty"`
}

type itemOptionResponse struct {
	GroupID   int64  `json:"group_id"`
	OptionID  int64  `json:"option_id"`
	Surcharge string `json:"surcharge"`
}

type redemptionResponse struct {
	CouponID int64  `json:"coupon_id"`
	Code     string `json:"code"`
	Discount string `json:"discount"`
}

type historyResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		Number:            o.Number,
		ClientID:          o.ClientID,
		RestaurantID:      o.RestaurantID,
		DeliveryAddressID: o.DeliveryAddressID,
		PaymentTypeID:     o.PaymentTypeID,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		Subtotal:          o.Subtotal.StringFixed(2),
		DeliveryFee:       o.DeliveryFee.StringFixed(2),
		Discount:          o.Discount.StringFixed(2),
		Total:             o.Total.StringFixed(2),
		Notes:             o.Notes,
		CancelReason:      o.CancelReason,
		EstimatedDelivery: o.EstimatedDelivery,
		CreatedAt:         o.CreatedAt,
		ConfirmedAt:       o.ConfirmedAt,
		PreparingAt:       o.PreparingAt,
		ReadyAt:           o.ReadyAt,
		DispatchedAt:      o.DispatchedAt,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
	}
	if o.ChangeDue != nil {
		s := o.ChangeDue.StringFixed(2)
		resp.ChangeDue = &s
	}
	if o.Redemption != nil {
		resp.Coupon = &redemptionResponse{
			CouponID: o.Redemption.CouponID,
			Code:     o.Redemption.Code,
			Discount: o.Redemption.Discount.StringFixed(2),
		}
	}
	for _, item := range o.Items {
		ir := itemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Subtotal:  item.Subtotal.StringFixed(2),
			Notes:     item.Notes,
		}
		for _, opt := range item.Options {
			ir.Options = append(ir.Options, itemOptionResponse{
				GroupID:   opt.GroupID,
				OptionID:  opt.OptionID,
				Surcharge: opt.Surcharge.StringFixed(2),
			})
		}
		resp.Items = append(resp.Items, ir)
	}
	for _, e := range o.History {
		resp.History = append(resp.History, toHistoryResponse(e))
	}
	return resp
}

func toHistoryResponse(e order.HistoryEntry) historyResponse {
	return historyResponse{
		Status:    string(e.Status),
		Note:      e.Note,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
}

func toListResponse(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	domainReq := order.CreateRequest{
		ClientID:          req.ClientID,
		RestaurantID:      req.RestaurantID,
		DeliveryAddressID: req.DeliveryAddressID,
		PaymentTypeID:     req.PaymentTypeID,
		CouponCode:        req.CouponCode,
		Notes:             req.Notes,
	}

	if req.DeliveryFee != nil {
		fee, err := decimal.NewFromString(*req.DeliveryFee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid delivery_fee")
			return
		}
		domainReq.DeliveryFee = &fee
	}
	if req.ChangeDue != nil {
		change, err := decimal.NewFromString(*req.ChangeDue)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid change_due")
			return
		}
		domainReq.ChangeDue = &change
	}

	for _, item := range req.Items {
		di := order.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		}
		for _, opt := range item.Options {
			di.Options = append(di.Options, order.Selection{
				GroupID:  opt.GroupID,
				OptionID: opt.OptionID,
			})
		}
		domainReq.Items = append(domainReq.Items, di)
	}

	o, err := h.svc.CreateOrder(r.Context(), actorFrom(r), domainReq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// GetByNumber handles GET /orders/number/{number}.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// History handles GET /orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.svc.History(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]historyResponse, len(entries))
	for i, e := range entries {
		out[i] = toHistoryResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := order.Status(req.Status)
	if !target.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), actorFrom(r), id, target, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Cancel handles DELETE /orders/{id}. The cancellation reason travels in
// the optional JSON body.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req cancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	o, err := h.svc.Cancel(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ApprovePayment handles POST /orders/{id}/payment/approve.
func (h *OrderHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	h.setPayment(w, r, h.svc.ApprovePayment)
}

// RefusePayment handles POST /orders/{id}/payment/refuse.
func (h *OrderHandler) RefusePayment(w http.ResponseWriter, r *http.Request) {
	h.setPayment(w, r, h.svc.RefusePayment)
}

func (h *OrderHandler) setPayment(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, orderID int64) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := set(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ListByRestaurant handles GET /restaurants/{id}/orders.
func (h *OrderHandler) ListByRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.ListByRestaurant(r.Context(), id, status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(orders))
}

// ListActive handles GET /restaurants/{id}/orders/active.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orders, err := h.svc.ListActive(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(orders))
}

// ListByPeriod handles GET /restaurants/{id}/orders/report?from=&to=.
func (h *OrderHandler) ListByPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	orders, err := h.svc.ListByPeriod(r.Context(), id, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(orders))
}

// ListByClient handles GET /clients/{id}/orders.
func (h *OrderHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.ListByClient(r.Context(), id, status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(orders))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func statusFilter(w http.ResponseWriter, r *http.Request) (*order.Status, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, true
	}
	status := order.Status(raw)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return nil, false
	}
	return &status, true
}
