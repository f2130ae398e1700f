package services

import (
	"errors"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
)

// OrderState is the part of an order the lifecycle machine reasons about.
type OrderState struct {
	Status         models.OrderStatus
	PaymentStatus  models.PaymentStatus
	InventoryState models.InventoryState
}

func stateOf(o *models.Order) OrderState {
	return OrderState{Status: o.Status, PaymentStatus: o.PaymentStatus, InventoryState: o.InventoryState}
}

type EventKind int

const (
	EventSetStatus EventKind = iota
	EventPaymentCaptured
	EventPaymentFailed
	EventRefunded
)

func (k EventKind) String() string {
	switch k {
	case EventSetStatus:
		return "set_status"
	case EventPaymentCaptured:
		return "payment_captured"
	case EventPaymentFailed:
		return "payment_failed"
	case EventRefunded:
		return "refunded"
	}
	return "unknown"
}

// Event drives Transition. Status is only read for EventSetStatus.
type Event struct {
	Kind   EventKind
	Status models.OrderStatus
}

func SetStatus(s models.OrderStatus) Event { return Event{Kind: EventSetStatus, Status: s} }

// InventoryEffect is a ledger operation to apply to every item of the order.
type InventoryEffect struct {
	Type models.StockMovementType
}

// ErrEventIgnored is returned for payment events whose precondition does not
// hold. The state is unchanged; redelivered webhooks land here.
var ErrEventIgnored = errors.New("order event not applicable in current state")

// Transition is the order lifecycle. Inventory effects are derived from
// InventoryState so that each hold is released or deducted at most once.
func Transition(s OrderState, e Event) (OrderState, []InventoryEffect, error) {
	next := s

	switch e.Kind {
	case EventSetStatus:
		if !e.Status.Valid() {
			return s, nil, apperrors.Validation("invalid order status %q", e.Status)
		}
		next.Status = e.Status

		switch e.Status {
		case models.OrderProcessing:
			if s.PaymentStatus == models.PaymentPaid && s.InventoryState == models.InventoryReserved {
				next.InventoryState = models.InventoryDeducted
				return next, []InventoryEffect{{Type: models.StockReleased}, {Type: models.StockOut}}, nil
			}
		case models.OrderCancelled:
			if s.InventoryState == models.InventoryReserved {
				next.InventoryState = models.InventoryReleased
				return next, []InventoryEffect{{Type: models.StockReleased}}, nil
			}
		}
		return next, nil, nil

	case EventPaymentCaptured:
		// A failed attempt can be followed by a successful retry on the same
		// gateway order.
		if s.PaymentStatus != models.PaymentPending && s.PaymentStatus != models.PaymentFailed {
			return s, nil, ErrEventIgnored
		}
		next.PaymentStatus = models.PaymentPaid
		next.Status = models.OrderProcessing
		return next, nil, nil

	case EventPaymentFailed:
		if s.PaymentStatus != models.PaymentPending {
			return s, nil, ErrEventIgnored
		}
		next.PaymentStatus = models.PaymentFailed
		return next, nil, nil

	case EventRefunded:
		if s.PaymentStatus != models.PaymentPaid {
			return s, nil, ErrEventIgnored
		}
		next.PaymentStatus = models.PaymentRefunded
		next.Status = models.OrderCancelled
		if s.InventoryState == models.InventoryReserved {
			next.InventoryState = models.InventoryReleased
			return next, []InventoryEffect{{Type: models.StockReleased}}, nil
		}
		return next, nil, nil
	}

	return s, nil, apperrors.Validation("unknown order event %s", e.Kind)
}
