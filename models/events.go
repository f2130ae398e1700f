package models

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentCaptured    = "order.payment_captured"
	EventPaymentFailed      = "order.payment_failed"
	EventOrderRefunded      = "order.refunded"
)

// OrderEvent is published to Kafka and SNS on every lifecycle change.
type OrderEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        float64       `json:"amount"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewOrderEvent snapshots o for publishing.
func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID.Hex(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.Hex(),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Amount:        o.Amount,
		Timestamp:     time.Now().UTC(),
	}
}

// RazorpayWebhookEvent is the envelope posted to the webhook endpoint.
type RazorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity RazorpayPaymentEntity `json:"entity"`
		} `json:"payment,omitempty"`
		Refund *struct {
			Entity RazorpayRefundEntity `json:"entity"`
		} `json:"refund,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type RazorpayPaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description"`
}

type RazorpayRefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type CreatePaymentOrderRequest struct {
	Items          []OrderLine `json:"items" binding:"required,min=1,dive"`
	Address        Address     `json:"address" binding:"required"`
	PriceRequestID string      `json:"priceRequestId"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}
