package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. Inventory is embedded and owned by the product.
type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	Price          float64            `bson:"price" json:"price"`
	PriceOnRequest bool               `bson:"priceOnRequest" json:"priceOnRequest"`
	Category       string             `bson:"category" json:"category"`
	SubCategory    string             `bson:"subCategory" json:"subCategory"`
	Images         []string           `bson:"images" json:"images"`
	Sizes          []string           `bson:"sizes" json:"sizes"`
	Bestseller     bool               `bson:"bestseller" json:"bestseller"`
	Inventory      Inventory          `bson:"inventory" json:"inventory"`
	Version        int64              `bson:"version" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SizeStockInput seeds a size when a product is created.
type SizeStockInput struct {
	Size              string `json:"size" binding:"required"`
	Quantity          int    `json:"quantity" binding:"min=0"`
	LowStockThreshold *int   `json:"lowStockThreshold" binding:"omitempty,min=0"`
}

type CreateProductRequest struct {
	Name           string           `json:"name" binding:"required"`
	Description    string           `json:"description"`
	Price          float64          `json:"price" binding:"min=0"`
	PriceOnRequest bool             `json:"priceOnRequest"`
	Category       string           `json:"category" binding:"required"`
	SubCategory    string           `json:"subCategory"`
	Images         []string         `json:"images" binding:"omitempty,dive,url"`
	Bestseller     bool             `json:"bestseller"`
	Sizes          []SizeStockInput `json:"sizes" binding:"required,min=1,dive"`
}

// UpdateProductRequest changes descriptive fields only; stock goes through the ledger.
type UpdateProductRequest struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Price          *float64 `json:"price" binding:"omitempty,min=0"`
	PriceOnRequest *bool    `json:"priceOnRequest"`
	Category       *string  `json:"category"`
	SubCategory    *string  `json:"subCategory"`
	Images         []string `json:"images" binding:"omitempty,dive,url"`
	Bestseller     *bool    `json:"bestseller"`
	AddSizes       []string `json:"addSizes"`
}

type ProductFilter struct {
	Category    string
	SubCategory string
	Search      string
	Bestseller  *bool
	Page        int
	Limit       int
}
