package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/Vaibhavdev309/tapestry/common/middleware"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/services"
)

// --- Mock Services ---

type MockUserService struct{ mock.Mock }

func (m *MockUserService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) AdminLogin(ctx context.Context, req models.LoginRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockProductService struct{ mock.Mock }

func (m *MockProductService) Create(ctx context.Context, p models.Principal, req models.CreateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, models.MetaData, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Product), args.Get(1).(models.MetaData), args.Error(2)
}

func (m *MockProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id string, req models.UpdateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) PlaceOrder(ctx context.Context, p models.Principal, req models.PlaceOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) UserOrders(ctx context.Context, p models.Principal, page, limit int) (*models.OrderList, error) {
	args := m.Called(ctx, p, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderList), args.Error(1)
}

func (m *MockOrderService) AllOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*models.OrderList, error) {
	args := m.Called(ctx, status, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderList), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, p models.Principal, orderID string) (*models.Order, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*services.TransitionOutcome, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransitionOutcome), args.Error(1)
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) CreateRazorpayOrder(ctx context.Context, p models.Principal, req models.CreatePaymentOrderRequest) (*services.CreatePaymentOrderResponse, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreatePaymentOrderResponse), args.Error(1)
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, p models.Principal, req models.VerifyPaymentRequest) (*models.Order, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *MockPaymentService) ProcessRefund(ctx context.Context, orderID string) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockPaymentService) PaymentStatus(ctx context.Context, p models.Principal, orderID string) (*services.PaymentStatusView, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaymentStatusView), args.Error(1)
}

func (m *MockPaymentService) KeyID() string {
	return m.Called().String(0)
}

type MockInventoryService struct{ mock.Mock }

func (m *MockInventoryService) Overview(ctx context.Context) (*services.InventoryOverview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InventoryOverview), args.Error(1)
}

func (m *MockInventoryService) ProductInventory(ctx context.Context, productID string) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockInventoryService) UpdateStockByID(ctx context.Context, productID string, change models.StockChange) (*models.Product, error) {
	args := m.Called(ctx, productID, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockInventoryService) BulkUpdate(ctx context.Context, updates []services.BulkStockUpdate, userID string) *services.BulkUpdateResult {
	return m.Called(ctx, updates, userID).Get(0).(*services.BulkUpdateResult)
}

func (m *MockInventoryService) Alerts(ctx context.Context) ([]services.StockAlert, error) {
	args := m.Called(ctx)
	return args.Get(0).([]services.StockAlert), args.Error(1)
}

func (m *MockInventoryService) Report(ctx context.Context, days int) (*services.InventoryReport, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InventoryReport), args.Error(1)
}

// --- Helpers ---

var (
	testUser  = models.Principal{UserID: "64b7f0c2a1b2c3d4e5f60718", Email: "asha@example.com", Role: models.RoleUser}
	testAdmin = models.Principal{UserID: "admin", Email: "admin@example.com", Role: models.RoleAdmin}
)

// as stands in for AuthMiddleware with a fixed caller.
func as(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.PrincipalContextKey, p)
		c.Next()
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
