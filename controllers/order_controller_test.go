package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/services"
)

const orderBody = `{
	"items":[{"productId":"64b7f0c2a1b2c3d4e5f60719","size":"M","quantity":1}],
	"address":{"fullName":"Asha","street":"1 MG Road","city":"Pune","zip":"411001","country":"IN","phone":"9999999999"},
	"paymentMethod":"cod"
}`

func TestOrderController_PlaceOrder(t *testing.T) {
	t.Run("Success - 201 Created", func(t *testing.T) {
		mockService := new(MockOrderService)
		oc := NewOrderController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/placeorder", as(testUser), oc.PlaceOrder)

		order := &models.Order{ID: primitive.NewObjectID(), OrderNumber: "ORD-1", Status: models.OrderPending}
		mockService.On("PlaceOrder", mock.Anything, testUser, mock.MatchedBy(func(req models.PlaceOrderRequest) bool {
			return req.PaymentMethod == models.PaymentMethodCOD && len(req.Items) == 1
		})).Return(order, nil).Once()

		w := doJSON(r, http.MethodPost, "/placeorder", orderBody)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "ORD-1")
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - insufficient stock - 400", func(t *testing.T) {
		mockService := new(MockOrderService)
		oc := NewOrderController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/placeorder", as(testUser), oc.PlaceOrder)

		mockService.On("PlaceOrder", mock.Anything, testUser, mock.Anything).
			Return(nil, apperrors.InsufficientStock("Only 0 left in size M")).Once()

		w := doJSON(r, http.MethodPost, "/placeorder", orderBody)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"Only 0 left in size M"}`, w.Body.String())
	})

	t.Run("Failure - unknown payment method - 400", func(t *testing.T) {
		mockService := new(MockOrderService)
		oc := NewOrderController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/placeorder", as(testUser), oc.PlaceOrder)

		body := `{"items":[{"productId":"p","size":"M","quantity":1}],
			"address":{"fullName":"A","street":"S","city":"C","zip":"1","country":"IN","phone":"9"},
			"paymentMethod":"cheque"}`
		w := doJSON(r, http.MethodPost, "/placeorder", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"paymentMethod"`)
	})

	t.Run("Failure - online payment method - 400", func(t *testing.T) {
		mockService := new(MockOrderService)
		oc := NewOrderController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/placeorder", as(testUser), oc.PlaceOrder)

		body := `{"items":[{"productId":"p","size":"M","quantity":1}],
			"address":{"fullName":"A","street":"S","city":"C","zip":"1","country":"IN","phone":"9"},
			"paymentMethod":"razorpay"}`
		w := doJSON(r, http.MethodPost, "/placeorder", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"paymentMethod"`)
		mockService.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderController_Lists(t *testing.T) {
	mockService := new(MockOrderService)
	oc := NewOrderController(mockService, zap.NewNop())
	r := newRouter()
	r.GET("/userorders", as(testUser), oc.UserOrders)
	r.GET("/list", as(testAdmin), oc.AllOrders)
	r.GET("/:id", as(testUser), oc.GetOrder)

	mockService.On("UserOrders", mock.Anything, testUser, 2, 5).
		Return(&models.OrderList{Orders: []models.Order{}, Meta: models.NewMetaData(2, 5, 6)}, nil).Once()
	mockService.On("AllOrders", mock.Anything, models.OrderShipped, 1, 20).
		Return(&models.OrderList{Orders: []models.Order{}, Meta: models.NewMetaData(1, 20, 0)}, nil).Once()
	mockService.On("GetOrder", mock.Anything, testUser, "someone-elses").
		Return(nil, apperrors.Forbidden("Not your order")).Once()

	w := doJSON(r, http.MethodGet, "/userorders?page=2&limit=5", ``)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalPages":2`)

	w = doJSON(r, http.MethodGet, "/list?status=shipped&page=abc", ``)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/someone-elses", ``)
	assert.Equal(t, http.StatusForbidden, w.Code)

	mockService.AssertExpectations(t)
}

func TestOrderController_UpdateStatus(t *testing.T) {
	mockService := new(MockOrderService)
	oc := NewOrderController(mockService, zap.NewNop())
	r := newRouter()
	r.POST("/status", as(testAdmin), oc.UpdateStatus)

	order := &models.Order{ID: primitive.NewObjectID(), Status: models.OrderProcessing}
	mockService.On("UpdateStatus", mock.Anything, "o1", models.OrderProcessing).Return(&services.TransitionOutcome{
		Order:   order,
		Applied: true,
		Errors: []services.InventoryItemError{
			{ProductID: "p1", Size: "M", Operation: models.StockOut, Message: "Product not found"},
		},
	}, nil).Once()
	mockService.On("UpdateStatus", mock.Anything, "o2", models.OrderStatus("teleported")).
		Return(nil, apperrors.Validation("invalid order status %q", "teleported")).Once()

	w := doJSON(r, http.MethodPost, "/status", `{"orderId":"o1","status":"processing"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inventoryErrors":[{"productId":"p1","size":"M","operation":"out","message":"Product not found"}]`)

	w = doJSON(r, http.MethodPost, "/status", `{"orderId":"o2","status":"teleported"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/status", `{"status":"processing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"orderId"`)

	mockService.AssertExpectations(t)
}
