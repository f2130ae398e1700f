package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type CartService interface {
	Get(ctx context.Context, principal models.Principal) (*models.Cart, error)
	Add(ctx context.Context, principal models.Principal, item models.CartItem) (*models.Cart, error)
	Update(ctx context.Context, principal models.Principal, item models.CartItem) (*models.Cart, error)
	Remove(ctx context.Context, principal models.Principal, productID, size string) (*models.Cart, error)
	Clear(ctx context.Context, principal models.Principal) error
}

type CartController struct {
	carts  CartService
	logger *zap.Logger
}

func NewCartController(carts CartService, logger *zap.Logger) *CartController {
	return &CartController{carts: carts, logger: logger}
}

func (cc *CartController) GetCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	cart, err := cc.carts.Get(c.Request.Context(), p)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

func (cc *CartController) AddToCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var item models.CartItem
	if !bindJSON(c, &item) {
		return
	}
	cart, err := cc.carts.Add(c.Request.Context(), p, item)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Added to cart", "cart": cart})
}

func (cc *CartController) UpdateCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var item models.CartItem
	if !bindJSON(c, &item) {
		return
	}
	cart, err := cc.carts.Update(c.Request.Context(), p, item)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart updated", "cart": cart})
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	cart, err := cc.carts.Remove(c.Request.Context(), p, c.Param("productId"), c.Param("size"))
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

func (cc *CartController) ClearCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := cc.carts.Clear(c.Request.Context(), p); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared"})
}
