package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the fulfillment axis.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// PaymentStatus is independent of OrderStatus.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// InventoryState records which ledger effect an order's items currently hold.
type InventoryState string

const (
	InventoryReserved InventoryState = "reserved"
	InventoryDeducted InventoryState = "deducted"
	InventoryReleased InventoryState = "released"
)

type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "cod"
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Size      string             `bson:"size" json:"size"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     float64            `bson:"price" json:"price"`
}

type Address struct {
	FullName string `bson:"fullName" json:"fullName" binding:"required"`
	Street   string `bson:"street" json:"street" binding:"required"`
	City     string `bson:"city" json:"city" binding:"required"`
	State    string `bson:"state" json:"state"`
	Zip      string `bson:"zip" json:"zip" binding:"required"`
	Country  string `bson:"country" json:"country" binding:"required"`
	Phone    string `bson:"phone" json:"phone" binding:"required"`
	Email    string `bson:"email,omitempty" json:"email,omitempty" binding:"omitempty,email"`
}

type PaymentDetails struct {
	RazorpayOrderID   string                 `bson:"razorpayOrderId,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string                 `bson:"razorpayPaymentId,omitempty" json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string                 `bson:"razorpaySignature,omitempty" json:"-"`
	GatewayResponse   map[string]interface{} `bson:"gatewayResponse,omitempty" json:"gatewayResponse,omitempty"`
	RefundID          string                 `bson:"refundId,omitempty" json:"refundId,omitempty"`
	RefundedAt        *time.Time             `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
}

type StatusChange struct {
	Status        OrderStatus   `bson:"status" json:"status"`
	PaymentStatus PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	Date          time.Time     `bson:"date" json:"date"`
	Note          string        `bson:"note,omitempty" json:"note,omitempty"`
}

type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	OrderNumber    string              `bson:"orderNumber" json:"orderNumber"`
	UserID         primitive.ObjectID  `bson:"userId" json:"userId"`
	UserEmail      string              `bson:"userEmail,omitempty" json:"-"`
	Items          []OrderItem         `bson:"items" json:"items"`
	Amount         float64             `bson:"amount" json:"amount"`
	Address        Address             `bson:"address" json:"address"`
	Status         OrderStatus         `bson:"status" json:"status"`
	PaymentMethod  PaymentMethod       `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus  PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	InventoryState InventoryState      `bson:"inventoryState" json:"inventoryState"`
	PaymentDetails *PaymentDetails     `bson:"paymentDetails,omitempty" json:"paymentDetails,omitempty"`
	PriceRequest   *primitive.ObjectID `bson:"priceRequest,omitempty" json:"priceRequest,omitempty"`
	StatusHistory  []StatusChange      `bson:"statusHistory" json:"statusHistory"`
	Version        int64               `bson:"version" json:"-"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// OrderLine is a requested item before pricing.
type OrderLine struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type PlaceOrderRequest struct {
	Items          []OrderLine   `json:"items" binding:"required,min=1,dive"`
	Address        Address       `json:"address" binding:"required"`
	PaymentMethod  PaymentMethod `json:"paymentMethod" binding:"omitempty,oneof=cod"`
	PriceRequestID string        `json:"priceRequestId"`
}

type UpdateStatusRequest struct {
	OrderID string      `json:"orderId" binding:"required"`
	Status  OrderStatus `json:"status" binding:"required"`
}

type OrderFilter struct {
	UserID *primitive.ObjectID
	Status OrderStatus
	Page   int
	Limit  int
}

type OrderList struct {
	Orders []Order  `json:"orders"`
	Meta   MetaData `json:"meta"`
}

type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// NewMetaData builds pagination metadata for total rows.
func NewMetaData(page, limit int, total int64) MetaData {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return MetaData{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasMore:    total > int64(page*limit),
	}
}
