package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/services"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, principal models.Principal, req models.PlaceOrderRequest) (*models.Order, error)
	UserOrders(ctx context.Context, principal models.Principal, page, limit int) (*models.OrderList, error)
	AllOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*models.OrderList, error)
	GetOrder(ctx context.Context, principal models.Principal, orderID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*services.TransitionOutcome, error)
}

type OrderController struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrderController(orders OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, logger: logger}
}

// PlaceOrder handles POST /order/placeorder (cash on delivery or an approved price request).
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := oc.orders.PlaceOrder(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Order placed", "order": order})
}

func (oc *OrderController) UserOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit := pagination(c)
	list, err := oc.orders.UserOrders(c.Request.Context(), p, page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": list.Orders, "meta": list.Meta})
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// AllOrders handles GET /order/list?status=&page=&limit= for admins.
func (oc *OrderController) AllOrders(c *gin.Context) {
	page, limit := pagination(c)
	list, err := oc.orders.AllOrders(c.Request.Context(), models.OrderStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": list.Orders, "meta": list.Meta})
}

// UpdateStatus reports per-item inventory failures alongside the updated order.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	outcome, err := oc.orders.UpdateStatus(c.Request.Context(), req.OrderID, req.Status)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	resp := gin.H{"success": true, "message": "Status updated", "order": outcome.Order}
	if len(outcome.Errors) > 0 {
		resp["inventoryErrors"] = outcome.Errors
	}
	c.JSON(http.StatusOK, resp)
}
