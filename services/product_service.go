package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/repository"
)

type ProductService struct {
	products  repository.ProductRepository
	inventory *InventoryService
	logger    *zap.Logger
	now       func() time.Time
}

func NewProductService(products repository.ProductRepository, inventory *InventoryService, logger *zap.Logger) *ProductService {
	return &ProductService{
		products:  products,
		inventory: inventory,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProductService) Create(ctx context.Context, principal models.Principal, req models.CreateProductRequest) (*models.Product, error) {
	seen := make(map[string]bool, len(req.Sizes))
	sizes := make([]string, 0, len(req.Sizes))
	stock := make([]models.SizeStockInput, 0, len(req.Sizes))
	for _, sz := range req.Sizes {
		sz.Size = strings.TrimSpace(sz.Size)
		if sz.Size == "" {
			return nil, apperrors.Validation("size must not be empty")
		}
		if seen[sz.Size] {
			return nil, apperrors.Validation("duplicate size %s", sz.Size)
		}
		seen[sz.Size] = true
		sizes = append(sizes, sz.Size)
		stock = append(stock, sz)
	}

	now := s.now()
	p := &models.Product{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		Price:          req.Price,
		PriceOnRequest: req.PriceOnRequest,
		Category:       req.Category,
		SubCategory:    req.SubCategory,
		Images:         req.Images,
		Sizes:          sizes,
		Bestseller:     req.Bestseller,
		Inventory:      models.NewInventory(stock, principal.UserID, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if !p.PriceOnRequest && p.Price <= 0 {
		return nil, apperrors.Validation("price is required unless the product is priced on request")
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, apperrors.Internal("failed to create product", err)
	}
	s.logger.Info("product created",
		zap.String("product_id", p.ID.Hex()),
		zap.Int("total_stock", p.Inventory.TotalStock),
	)
	return p, nil
}

func (s *ProductService) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, models.MetaData, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	filter.Search = strings.TrimSpace(filter.Search)

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, models.MetaData{}, apperrors.Internal("failed to list products", err)
	}
	return products, models.NewMetaData(filter.Page, filter.Limit, total), nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.inventory.ProductInventory(ctx, id)
}

// Update changes descriptive fields. New sizes start empty; stock is only
// changed through the ledger.
func (s *ProductService) Update(ctx context.Context, id string, req models.UpdateProductRequest) (*models.Product, error) {
	productID, err := parseObjectID(id, "product id")
	if err != nil {
		return nil, err
	}

	p, err := s.inventory.mutate(ctx, productID, func(p *models.Product) error {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return apperrors.Validation("name must not be empty")
			}
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Price != nil {
			p.Price = *req.Price
		}
		if req.PriceOnRequest != nil {
			p.PriceOnRequest = *req.PriceOnRequest
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if req.SubCategory != nil {
			p.SubCategory = *req.SubCategory
		}
		if req.Images != nil {
			p.Images = req.Images
		}
		if req.Bestseller != nil {
			p.Bestseller = *req.Bestseller
		}
		for _, size := range req.AddSizes {
			size = strings.TrimSpace(size)
			if size == "" || p.Inventory.Size(size) != nil {
				continue
			}
			p.Inventory.AddSize(size, s.now())
			p.Sizes = append(p.Sizes, size)
		}
		if !p.PriceOnRequest && p.Price <= 0 {
			return apperrors.Validation("price is required unless the product is priced on request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product updated", zap.String("product_id", p.ID.Hex()))
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	productID, err := parseObjectID(id, "product id")
	if err != nil {
		return err
	}
	err = s.products.Delete(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("product not found")
	}
	if err != nil {
		return apperrors.Internal("failed to delete product", err)
	}
	s.logger.Info("product deleted", zap.String("product_id", productID.Hex()))
	return nil
}

// sellable reports whether productID exists and carries size.
func (s *ProductService) sellable(ctx context.Context, productID primitive.ObjectID, size string) (*models.Product, error) {
	p, err := s.inventory.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Inventory.Size(size) == nil {
		return nil, apperrors.Validation("size %s is not available for %s", size, p.Name)
	}
	return p, nil
}
