package order

import (
	"fmt"
	"time"
)

// InvalidTransitionError indicates an operation was invoked on an order
// whose current status does not permit it. Forward transitions require the
// immediately preceding status; skipping ahead is rejected.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

// InvalidCancellationError indicates a cancellation was attempted after
// the order passed the point of no return.
type InvalidCancellationError struct {
	From Status
}

func (e *InvalidCancellationError) Error() string {
	return fmt.Sprintf("order cannot be cancelled from status %s", e.From)
}

// Confirm moves the order from AWAITING_CONFIRMATION to CONFIRMED and
// stamps the confirmation time.
func (o *Order) Confirm(now time.Time) error {
	if o.Status != StatusAwaitingConfirmation {
		return &InvalidTransitionError{From: o.Status, To: StatusConfirmed}
	}
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	return nil
}

// StartPreparing moves the order from CONFIRMED to PREPARING.
func (o *Order) StartPreparing(now time.Time) error {
	if o.Status != StatusConfirmed {
		return &InvalidTransitionError{From: o.Status, To: StatusPreparing}
	}
	o.Status = StatusPreparing
	o.PreparingAt = &now
	return nil
}

// MarkReady moves the order from PREPARING to READY.
func (o *Order) MarkReady(now time.Time) error {
	if o.Status != StatusPreparing {
		return &InvalidTransitionError{From: o.Status, To: StatusReady}
	}
	o.Status = StatusReady
	o.ReadyAt = &now
	return nil
}

// Dispatch moves the order from READY to DISPATCHED.
func (o *Order) Dispatch(now time.Time) error {
	if o.Status != StatusReady {
		return &InvalidTransitionError{From: o.Status, To: StatusDispatched}
	}
	o.Status = StatusDispatched
	o.DispatchedAt = &now
	return nil
}

// Deliver moves the order from DISPATCHED to its DELIVERED terminal state.
func (o *Order) Deliver(now time.Time) error {
	if o.Status != StatusDispatched {
		return &InvalidTransitionError{From: o.Status, To: StatusDelivered}
	}
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}

// CanCancel reports whether the order may still be cancelled. Once
// preparation has started the order is committed.
func (o *Order) CanCancel() bool {
	return o.Status == StatusAwaitingConfirmation || o.Status == StatusConfirmed
}

// Cancel moves the order to its CANCELLED terminal state, stamping the
// cancellation time and recording the reason.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.CanCancel() {
		return &InvalidCancellationError{From: o.Status}
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	return nil
}

// ApprovePayment marks the payment as approved. Payment status is tracked
// independently of the order status.
func (o *Order) ApprovePayment() {
	o.PaymentStatus = PaymentApproved
}

// RefusePayment marks the payment as refused.
func (o *Order) RefusePayment() {
	o.PaymentStatus = PaymentRefused
}
