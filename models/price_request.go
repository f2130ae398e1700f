package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PriceRequestStatus string

const (
	PriceRequestPending   PriceRequestStatus = "pending"
	PriceRequestApproved  PriceRequestStatus = "approved"
	PriceRequestRejected  PriceRequestStatus = "rejected"
	PriceRequestCompleted PriceRequestStatus = "completed"
)

type PriceRequestItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Size      string             `bson:"size" json:"size"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     *float64           `bson:"price" json:"price"`
}

type PriceRequest struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	UserEmail       string              `bson:"userEmail,omitempty" json:"-"`
	Items           []PriceRequestItem  `bson:"items" json:"items"`
	Status          PriceRequestStatus  `bson:"status" json:"status"`
	TotalAmount     float64             `bson:"totalAmount" json:"totalAmount"`
	UserNote        string              `bson:"userNote,omitempty" json:"userNote,omitempty"`
	AdminNote       string              `bson:"adminNote,omitempty" json:"adminNote,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	OrderID         *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	ApprovedAt      *time.Time          `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// PriceFor returns the approved price for a product/size line.
func (pr *PriceRequest) PriceFor(productID primitive.ObjectID, size string) (float64, bool) {
	for _, it := range pr.Items {
		if it.ProductID == productID && it.Size == size && it.Price != nil {
			return *it.Price, true
		}
	}
	return 0, false
}

type CreatePriceRequest struct {
	Items []OrderLine `json:"items" binding:"required,min=1,dive"`
	Note  string      `json:"note" binding:"max=1000"`
}

type ItemPrice struct {
	ProductID string  `json:"productId" binding:"required"`
	Size      string  `json:"size" binding:"required"`
	Price     float64 `json:"price" binding:"min=0"`
}

type ApprovePriceRequest struct {
	Prices    []ItemPrice `json:"prices" binding:"required,min=1,dive"`
	AdminNote string      `json:"adminNote" binding:"max=1000"`
}

type RejectPriceRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}
