package models

import "time"

type CartItem struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"min=0"`
}

type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Set replaces the quantity of a line. Zero removes it.
func (c *Cart) Set(productID, size string, quantity int) {
	for i, it := range c.Items {
		if it.ProductID == productID && it.Size == size {
			if quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = quantity
			}
			return
		}
	}
	if quantity > 0 {
		c.Items = append(c.Items, CartItem{ProductID: productID, Size: size, Quantity: quantity})
	}
}

// Quantity returns the current quantity of a line.
func (c *Cart) Quantity(productID, size string) int {
	for _, it := range c.Items {
		if it.ProductID == productID && it.Size == size {
			return it.Quantity
		}
	}
	return 0
}
