package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
	"github.com/Vaibhavdev309/tapestry/providers"
)

// PaymentGateway is the card/UPI processor. Amounts are in paise.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]string) (*providers.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (map[string]interface{}, error)
	Refund(ctx context.Context, paymentID string, amountPaise int64, notes map[string]string) (*providers.GatewayRefund, error)
}

const Currency = "INR"

const (
	webhookPaymentCaptured = "payment.captured"
	webhookPaymentFailed   = "payment.failed"
	webhookRefundCreated   = "refund.created"
)

type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type PaymentService struct {
	gateway   PaymentGateway
	orders    *OrderService
	cfg       PaymentConfig
	notifier  Notifier
	publisher EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(
	gateway PaymentGateway,
	orders *OrderService,
	cfg PaymentConfig,
	notifier Notifier,
	publisher EventPublisher,
	metrics Metrics,
	logger *zap.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &PaymentService{
		gateway:   gateway,
		orders:    orders,
		cfg:       cfg,
		notifier:  notifier,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreatePaymentOrderResponse struct {
	OrderID         string  `json:"orderId"`
	OrderNumber     string  `json:"orderNumber"`
	RazorpayOrderID string  `json:"razorpayOrderId"`
	Amount          int64   `json:"amount"`
	DisplayAmount   float64 `json:"displayAmount"`
	Currency        string  `json:"currency"`
	KeyID           string  `json:"key"`
}

func toPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateRazorpayOrder prices and reserves the order locally and opens a
// matching gateway order the client pays against.
func (s *PaymentService) CreateRazorpayOrder(ctx context.Context, principal models.Principal, req models.CreatePaymentOrderRequest) (*CreatePaymentOrderResponse, error) {
	o, err := s.orders.PrepareOrder(ctx, principal, req.Items, req.Address, models.PaymentMethodRazorpay, req.PriceRequestID)
	if err != nil {
		return nil, err
	}
	paise := toPaise(o.Amount)
	if paise <= 0 {
		return nil, apperrors.Validation("order amount must be greater than zero")
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, paise, Currency, o.OrderNumber, map[string]string{
		"orderId": o.ID.Hex(),
		"userId":  o.UserID.Hex(),
	})
	if err != nil {
		return nil, apperrors.Internal("failed to create payment order", err)
	}

	o.PaymentDetails = &models.PaymentDetails{RazorpayOrderID: gwOrder.ID}
	if err := s.orders.CommitOrder(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("payment order created",
		zap.String("order_id", o.ID.Hex()),
		zap.String("razorpay_order_id", gwOrder.ID),
		zap.Int64("amount_paise", paise),
	)
	return &CreatePaymentOrderResponse{
		OrderID:         o.ID.Hex(),
		OrderNumber:     o.OrderNumber,
		RazorpayOrderID: gwOrder.ID,
		Amount:          paise,
		DisplayAmount:   o.Amount,
		Currency:        Currency,
		KeyID:           s.cfg.KeyID,
	}, nil
}

// VerifyPayment checks the checkout signature and marks the order paid, also
// after an earlier attempt on the same gateway order failed. A mismatch never
// touches the order.
func (s *PaymentService) VerifyPayment(ctx context.Context, principal models.Principal, req models.VerifyPaymentRequest) (*models.Order, error) {
	if !providers.VerifyPaymentSignature(s.cfg.KeySecret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.logger.Warn("payment signature mismatch", zap.String("razorpay_order_id", req.RazorpayOrderID))
		_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentFailed, map[string]string{"Reason": "signature"})
		return nil, apperrors.InvalidSignature("Invalid payment signature")
	}

	o, err := s.orders.findByGateway(ctx, "", req.RazorpayOrderID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && o.UserID.Hex() != principal.UserID {
		return nil, apperrors.Forbidden("not allowed to verify this order")
	}

	payment, err := s.gateway.FetchPayment(ctx, req.RazorpayPaymentID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch payment", err)
	}

	outcome, err := s.orders.ApplyEvent(ctx, o.ID, Event{Kind: EventPaymentCaptured}, "Payment verified", func(o *models.Order) {
		details := ensureDetails(o)
		details.RazorpayPaymentID = req.RazorpayPaymentID
		details.RazorpaySignature = req.RazorpaySignature
		details.GatewayResponse = payment
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Applied {
		if outcome.Order.PaymentStatus == models.PaymentPaid {
			return outcome.Order, nil
		}
		return nil, apperrors.Validation("payment for this order is %s", outcome.Order.PaymentStatus)
	}

	s.onCaptured(ctx, outcome.Order)
	return outcome.Order, nil
}

func (s *PaymentService) onCaptured(ctx context.Context, o *models.Order) {
	_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentSucceeded, nil)
	s.logger.Info("payment captured",
		zap.String("order_id", o.ID.Hex()),
		zap.String("razorpay_payment_id", ensureDetails(o).RazorpayPaymentID),
	)

	s.orders.Finalize(ctx, o)

	data := orderNotificationData(o)
	data["paymentId"] = ensureDetails(o).RazorpayPaymentID
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypePaymentConfirmed,
		Recipient: orderRecipient(o),
		Subject:   "Payment received for order " + o.OrderNumber,
		Data:      data,
	})
	publishOrderEvent(ctx, s.publisher, s.logger, models.EventPaymentCaptured, o)
}

// HandleWebhook authenticates and applies a gateway webhook. Unknown events
// and unmatched orders are acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !providers.VerifyWebhookSignature(s.cfg.WebhookSecret, body, signature) {
		s.logger.Warn("webhook signature mismatch")
		return apperrors.InvalidSignature("Invalid webhook signature")
	}

	var evt models.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return apperrors.Validation("malformed webhook body")
	}
	log := s.logger.With(zap.String("webhook_event", evt.Event))

	switch evt.Event {
	case webhookPaymentCaptured:
		if evt.Payload.Payment == nil {
			return apperrors.Validation("webhook payload missing payment entity")
		}
		p := evt.Payload.Payment.Entity
		return s.applyWebhook(ctx, log, p.ID, p.OrderID, Event{Kind: EventPaymentCaptured}, "Payment captured (webhook)",
			func(o *models.Order) {
				// The captured attempt is the one a refund must target.
				ensureDetails(o).RazorpayPaymentID = p.ID
			},
			s.onCaptured,
		)

	case webhookPaymentFailed:
		if evt.Payload.Payment == nil {
			return apperrors.Validation("webhook payload missing payment entity")
		}
		p := evt.Payload.Payment.Entity
		return s.applyWebhook(ctx, log, p.ID, p.OrderID, Event{Kind: EventPaymentFailed}, "Payment failed: "+p.ErrorDescription,
			func(o *models.Order) { ensureDetails(o).RazorpayPaymentID = p.ID },
			func(ctx context.Context, o *models.Order) {
				_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentFailed, map[string]string{"Reason": "gateway"})
				publishOrderEvent(ctx, s.publisher, s.logger, models.EventPaymentFailed, o)
			},
		)

	case webhookRefundCreated:
		if evt.Payload.Refund == nil {
			return apperrors.Validation("webhook payload missing refund entity")
		}
		r := evt.Payload.Refund.Entity
		return s.applyWebhook(ctx, log, r.PaymentID, "", Event{Kind: EventRefunded}, "Refund created (webhook)",
			func(o *models.Order) { s.recordRefund(o, r.ID) },
			s.onRefunded,
		)
	}

	log.Info("webhook event ignored")
	return nil
}

func (s *PaymentService) applyWebhook(
	ctx context.Context,
	log *zap.Logger,
	paymentID, gatewayOrderID string,
	e Event,
	note string,
	mutate func(*models.Order),
	after func(context.Context, *models.Order),
) error {
	o, err := s.orders.findByGateway(ctx, paymentID, gatewayOrderID)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		log.Warn("webhook for unknown order",
			zap.String("razorpay_payment_id", paymentID),
			zap.String("razorpay_order_id", gatewayOrderID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	outcome, err := s.orders.ApplyEvent(ctx, o.ID, e, note, mutate)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		log.Info("webhook already applied", zap.String("order_id", o.ID.Hex()))
		return nil
	}
	after(ctx, outcome.Order)
	return nil
}

// ProcessRefund refunds the full amount of a paid online order. Deducted
// stock stays deducted.
func (s *PaymentService) ProcessRefund(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := parseObjectID(orderID, "order id")
	if err != nil {
		return nil, err
	}
	o, err := s.orders.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != models.PaymentMethodRazorpay {
		return nil, apperrors.Validation("only online payments can be refunded")
	}
	if o.PaymentStatus != models.PaymentPaid {
		return nil, apperrors.Validation("order payment is %s, not paid", o.PaymentStatus)
	}
	paymentID := ensureDetails(o).RazorpayPaymentID
	if paymentID == "" {
		return nil, apperrors.Validation("order has no captured payment")
	}

	refund, err := s.gateway.Refund(ctx, paymentID, toPaise(o.Amount), map[string]string{"orderNumber": o.OrderNumber})
	if err != nil {
		var apiErr *providers.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return nil, apperrors.Validation("refund rejected by gateway: %s", apiErr.Description)
		}
		return nil, apperrors.Internal("refund failed", err)
	}

	outcome, err := s.orders.ApplyEvent(ctx, o.ID, Event{Kind: EventRefunded}, "Refund issued", func(o *models.Order) {
		s.recordRefund(o, refund.ID)
	})
	if err != nil {
		return nil, err
	}
	if outcome.Applied {
		s.onRefunded(ctx, outcome.Order)
	}
	return outcome.Order, nil
}

func (s *PaymentService) recordRefund(o *models.Order, refundID string) {
	details := ensureDetails(o)
	details.RefundID = refundID
	at := s.now()
	details.RefundedAt = &at
}

func (s *PaymentService) onRefunded(ctx context.Context, o *models.Order) {
	_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentRefunded, nil)
	s.logger.Info("payment refunded",
		zap.String("order_id", o.ID.Hex()),
		zap.String("refund_id", ensureDetails(o).RefundID),
	)

	data := orderNotificationData(o)
	data["refundId"] = ensureDetails(o).RefundID
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypePaymentRefunded,
		Recipient: orderRecipient(o),
		Subject:   "Refund issued for order " + o.OrderNumber,
		Data:      data,
	})
	publishOrderEvent(ctx, s.publisher, s.logger, models.EventOrderRefunded, o)
}

type PaymentStatusView struct {
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Amount        float64              `json:"amount"`
}

func (s *PaymentService) PaymentStatus(ctx context.Context, principal models.Principal, orderID string) (*PaymentStatusView, error) {
	o, err := s.orders.GetOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{
		OrderID:       o.ID.Hex(),
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Amount:        o.Amount,
	}, nil
}

// KeyID is the public key the checkout widget needs.
func (s *PaymentService) KeyID() string {
	return s.cfg.KeyID
}

func ensureDetails(o *models.Order) *models.PaymentDetails {
	if o.PaymentDetails == nil {
		o.PaymentDetails = &models.PaymentDetails{}
	}
	return o.PaymentDetails
}
