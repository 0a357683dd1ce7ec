// Package handler exposes the order service over HTTP. Handlers translate
// JSON requests into domain calls and map domain errors onto status codes;
// all business rules live in the domain packages.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devmaster/delivery-backoffice/internal/domain/catalog"
	"github.com/devmaster/delivery-backoffice/internal/domain/coupon"
	"github.com/devmaster/delivery-backoffice/internal/domain/order"
	"github.com/devmaster/delivery-backoffice/internal/domain/party"
)

// actorHeader carries the authenticated operator id. Requests without it
// run as the system actor.
const actorHeader = "X-Actor-Id"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps a domain error onto an HTTP status. Unknown errors are
// logged and answered with a generic 500 so internals never leak.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if status, ok := statusFor(err); ok {
		writeError(w, status, err.Error())
		return
	}
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, true

	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, true

	case errors.Is(err, party.ErrClientNotFound),
		errors.Is(err, party.ErrRestaurantNotFound),
		errors.Is(err, party.ErrAddressNotFound),
		errors.Is(err, party.ErrPaymentTypeNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrGroupNotFound),
		errors.Is(err, catalog.ErrOptionNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrInvalid),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, order.ErrAddressOwnership),
		errors.Is(err, order.ErrRestaurantInactive),
		errors.Is(err, order.ErrRestaurantClosed):
		return http.StatusUnprocessableEntity, true

	case errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, order.ErrNumberAttempts):
		return http.StatusConflict, true
	}

	var (
		iqErr *order.InvalidQuantityError
		puErr *order.ProductUnavailableError
		prErr *order.ProductRestaurantMismatchError
		mgErr *order.MissingRequiredGroupError
		scErr *order.SelectionCountError
		gmErr *order.GroupMismatchError
		ouErr *order.OptionUnavailableError
		bmErr *order.BelowMinimumOrderError
	)
	switch {
	case errors.As(err, &iqErr),
		errors.As(err, &puErr),
		errors.As(err, &prErr),
		errors.As(err, &mgErr),
		errors.As(err, &scErr),
		errors.As(err, &gmErr),
		errors.As(err, &ouErr),
		errors.As(err, &bmErr):
		return http.StatusUnprocessableEntity, true
	}

	var (
		itErr *order.InvalidTransitionError
		icErr *order.InvalidCancellationError
	)
	if errors.As(err, &itErr) || errors.As(err, &icErr) {
		return http.StatusConflict, true
	}

	return 0, false
}

// actorFrom resolves the acting operator from the request headers. A
// missing or malformed header degrades to the system actor.
func actorFrom(r *http.Request) order.Actor {
	id, err := uuid.Parse(r.Header.Get(actorHeader))
	if err != nil {
		return order.Actor{}
	}
	return order.ActorID(id)
}
