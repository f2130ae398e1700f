package services

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/repository"
)

type CartService struct {
	carts    repository.CartRepository
	products *ProductService
	logger   *zap.Logger
}

func NewCartService(carts repository.CartRepository, products *ProductService, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, products: products, logger: logger}
}

func (s *CartService) Get(ctx context.Context, principal models.Principal) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, principal.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to load cart", err)
	}
	if cart == nil {
		cart = &models.Cart{UserID: principal.UserID, Items: []models.CartItem{}}
	}
	return cart, nil
}

// Add increases the quantity of a line, creating it if needed.
func (s *CartService) Add(ctx context.Context, principal models.Principal, item models.CartItem) (*models.Cart, error) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if err := s.checkSellable(ctx, item); err != nil {
		return nil, err
	}

	cart, err := s.Get(ctx, principal)
	if err != nil {
		return nil, err
	}
	cart.Set(item.ProductID, item.Size, cart.Quantity(item.ProductID, item.Size)+item.Quantity)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Update sets the quantity of a line. Zero removes it.
func (s *CartService) Update(ctx context.Context, principal models.Principal, item models.CartItem) (*models.Cart, error) {
	if item.Quantity < 0 {
		return nil, apperrors.Validation("quantity must not be negative")
	}
	if item.Quantity > 0 {
		if err := s.checkSellable(ctx, item); err != nil {
			return nil, err
		}
	}

	cart, err := s.Get(ctx, principal)
	if err != nil {
		return nil, err
	}
	cart.Set(item.ProductID, item.Size, item.Quantity)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) Remove(ctx context.Context, principal models.Principal, productID, size string) (*models.Cart, error) {
	return s.Update(ctx, principal, models.CartItem{ProductID: productID, Size: size, Quantity: 0})
}

func (s *CartService) Clear(ctx context.Context, principal models.Principal) error {
	if err := s.carts.DeleteCart(ctx, principal.UserID); err != nil {
		return apperrors.Internal("failed to clear cart", err)
	}
	return nil
}

func (s *CartService) checkSellable(ctx context.Context, item models.CartItem) error {
	productID, err := parseObjectID(item.ProductID, "product id")
	if err != nil {
		return err
	}
	_, err = s.products.sellable(ctx, productID, item.Size)
	return err
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		s.logger.Error("failed to save cart", zap.String("user_id", cart.UserID), zap.Error(err))
		return apperrors.Internal("failed to save cart", err)
	}
	return nil
}
