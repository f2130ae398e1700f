package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/services"
)

// RazorpaySignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const RazorpaySignatureHeader = "x-razorpay-signature"

// MaxWebhookBytes caps the unauthenticated webhook body read before the HMAC check.
const MaxWebhookBytes = 1 << 20

type PaymentService interface {
	CreateRazorpayOrder(ctx context.Context, principal models.Principal, req models.CreatePaymentOrderRequest) (*services.CreatePaymentOrderResponse, error)
	VerifyPayment(ctx context.Context, principal models.Principal, req models.VerifyPaymentRequest) (*models.Order, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ProcessRefund(ctx context.Context, orderID string) (*models.Order, error)
	PaymentStatus(ctx context.Context, principal models.Principal, orderID string) (*services.PaymentStatusView, error)
	KeyID() string
}

type PaymentController struct {
	payments PaymentService
	logger   *zap.Logger
}

func NewPaymentController(payments PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{payments: payments, logger: logger}
}

// CreateOrder reserves stock and opens a gateway order for the checkout widget.
func (pc *PaymentController) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreatePaymentOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := pc.payments.CreateRazorpayOrder(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": resp})
}

func (pc *PaymentController) Verify(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.VerifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := pc.payments.VerifyPayment(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment verified", "order": order})
}

// Webhook must see the body byte for byte, so it is read raw and never bound.
func (pc *PaymentController) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unreadable body"})
		return
	}
	if err := pc.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(RazorpaySignatureHeader)); err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "received"})
}

func (pc *PaymentController) Refund(c *gin.Context) {
	order, err := pc.payments.ProcessRefund(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Refund processed", "order": order})
}

func (pc *PaymentController) Status(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := pc.payments.PaymentStatus(c.Request.Context(), p, c.Param("orderId"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": view})
}

func (pc *PaymentController) Key(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "key": pc.payments.KeyID()})
}
