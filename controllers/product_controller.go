package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type ProductService interface {
	Create(ctx context.Context, principal models.Principal, req models.CreateProductRequest) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, models.MetaData, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Update(ctx context.Context, id string, req models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

type ProductController struct {
	products ProductService
	logger   *zap.Logger
}

func NewProductController(products ProductService, logger *zap.Logger) *ProductController {
	return &ProductController{products: products, logger: logger}
}

// GetProducts handles GET /product/list?category=&subCategory=&search=&bestseller=&page=&limit=
func (pc *ProductController) GetProducts(c *gin.Context) {
	page, limit := pagination(c)
	filter := models.ProductFilter{
		Category:    c.Query("category"),
		SubCategory: c.Query("subCategory"),
		Search:      c.Query("search"),
		Page:        page,
		Limit:       limit,
	}
	if raw := c.Query("bestseller"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			filter.Bestseller = &b
		}
	}

	products, meta, err := pc.products.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products, "meta": meta})
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	product, err := pc.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := pc.products.Create(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Product added", "product": product})
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := pc.products.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product updated", "product": product})
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	if err := pc.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product removed"})
}
