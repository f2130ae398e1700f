package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Vaibhavdev309/tapestry/common/middleware"
	"github.com/Vaibhavdev309/tapestry/controllers"
)

type Controllers struct {
	User         *controllers.UserController
	Product      *controllers.ProductController
	Cart         *controllers.CartController
	Order        *controllers.OrderController
	PriceRequest *controllers.PriceRequestController
	Payment      *controllers.PaymentController
	Inventory    *controllers.InventoryController
	Notification *controllers.NotificationController
}

// RegisterRoutes mounts the storefront API under /api. loginLimiter guards
// the credential endpoints only.
func RegisterRoutes(r *gin.Engine, ctrl Controllers, tokens middleware.TokenValidator, loginLimiter gin.HandlerFunc) {
	auth := middleware.AuthMiddleware(tokens)
	admin := middleware.RequireAdmin()

	api := r.Group("/api")

	user := api.Group("/user")
	{
		user.POST("/register", loginLimiter, ctrl.User.Register)
		user.POST("/login", loginLimiter, ctrl.User.Login)
		user.POST("/admin", loginLimiter, ctrl.User.AdminLogin)
	}

	product := api.Group("/product")
	{
		product.GET("/list", ctrl.Product.GetProducts)
		product.GET("/:id", ctrl.Product.GetProduct)
		product.POST("/add", auth, admin, ctrl.Product.CreateProduct)
		product.PUT("/:id", auth, admin, ctrl.Product.UpdateProduct)
		product.DELETE("/:id", auth, admin, ctrl.Product.DeleteProduct)
	}

	cart := api.Group("/cart", auth)
	{
		cart.GET("", ctrl.Cart.GetCart)
		cart.POST("/add", ctrl.Cart.AddToCart)
		cart.PUT("/update", ctrl.Cart.UpdateCart)
		cart.DELETE("/:productId/:size", ctrl.Cart.RemoveItem)
		cart.DELETE("", ctrl.Cart.ClearCart)
	}

	order := api.Group("/order", auth)
	{
		order.POST("/placeorder", ctrl.Order.PlaceOrder)
		order.GET("/userorders", ctrl.Order.UserOrders)
		order.GET("/list", admin, ctrl.Order.AllOrders)
		order.POST("/status", admin, ctrl.Order.UpdateStatus)
		order.GET("/:id", ctrl.Order.GetOrder)
	}

	priceRequests := api.Group("/price-requests", auth)
	{
		priceRequests.POST("/create", ctrl.PriceRequest.Create)
		priceRequests.GET("/current", ctrl.PriceRequest.Current)
		priceRequests.GET("/mine", ctrl.PriceRequest.Mine)
		priceRequests.GET("", admin, ctrl.PriceRequest.List)
		priceRequests.PUT("/approve/:id", admin, ctrl.PriceRequest.Approve)
		priceRequests.PUT("/reject/:id", admin, ctrl.PriceRequest.Reject)
	}

	payment := api.Group("/payment")
	{
		// Authenticated by HMAC, not by token.
		payment.POST("/webhook", ctrl.Payment.Webhook)

		payment.POST("/create-order", auth, ctrl.Payment.CreateOrder)
		payment.POST("/verify", auth, ctrl.Payment.Verify)
		payment.GET("/status/:orderId", auth, ctrl.Payment.Status)
		payment.GET("/razorpay-key", auth, ctrl.Payment.Key)
		payment.POST("/refund/:orderId", auth, admin, ctrl.Payment.Refund)
	}

	inventory := api.Group("/inventory", auth, admin)
	{
		inventory.GET("/overview", ctrl.Inventory.Overview)
		inventory.GET("/product/:id", ctrl.Inventory.ProductInventory)
		inventory.PUT("/:id/stock", ctrl.Inventory.UpdateStock)
		inventory.POST("/bulk-update", ctrl.Inventory.BulkUpdate)
		inventory.POST("/reserve", ctrl.Inventory.Reserve)
		inventory.POST("/release", ctrl.Inventory.Release)
		inventory.GET("/alerts", ctrl.Inventory.Alerts)
		inventory.GET("/reports", ctrl.Inventory.Reports)
	}

	api.GET("/notifications", auth, admin, ctrl.Notification.List)
}
