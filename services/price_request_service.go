package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/repository"
)

// PriceRequestService runs the quote workflow for priced-on-request items:
// pending -> approved|rejected, approved -> completed once ordered.
type PriceRequestService struct {
	requests repository.PriceRequestRepository
	products repository.ProductRepository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewPriceRequestService(
	requests repository.PriceRequestRepository,
	products repository.ProductRepository,
	notifier Notifier,
	logger *zap.Logger,
) *PriceRequestService {
	return &PriceRequestService{
		requests: requests,
		products: products,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var errPendingExists = apperrors.Validation("You already have a pending price request")

func (s *PriceRequestService) Create(ctx context.Context, principal models.Principal, req models.CreatePriceRequest) (*models.PriceRequest, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("price request must contain at least one item")
	}
	userID, err := parseObjectID(principal.UserID, "user id")
	if err != nil {
		return nil, err
	}

	_, err = s.requests.FindLatestByUser(ctx, userID, models.PriceRequestPending)
	if err == nil {
		return nil, errPendingExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal("failed to check pending price requests", err)
	}

	items := make([]models.PriceRequestItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, apperrors.Validation("quantity must be at least 1")
		}
		productID, err := parseObjectID(line.ProductID, "product id")
		if err != nil {
			return nil, err
		}
		p, err := s.products.FindByID(ctx, productID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validation("product %s not found", line.ProductID)
		}
		if err != nil {
			return nil, apperrors.Internal("failed to load product", err)
		}
		if p.Inventory.Size(line.Size) == nil {
			return nil, apperrors.Validation("size %s is not available for %s", line.Size, p.Name)
		}
		items = append(items, models.PriceRequestItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
		})
	}

	now := s.now()
	pr := &models.PriceRequest{
		UserID:    userID,
		UserEmail: principal.Email,
		Items:     items,
		Status:    models.PriceRequestPending,
		UserNote:  req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.Create(ctx, pr); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errPendingExists
		}
		return nil, apperrors.Internal("failed to create price request", err)
	}

	s.logger.Info("price request created", zap.String("price_request_id", pr.ID.Hex()), zap.Int("items", len(items)))
	return pr, nil
}

// Current returns the user's latest pending or approved request, or nil.
func (s *PriceRequestService) Current(ctx context.Context, principal models.Principal) (*models.PriceRequest, error) {
	userID, err := parseObjectID(principal.UserID, "user id")
	if err != nil {
		return nil, err
	}
	pr, err := s.requests.FindLatestByUser(ctx, userID, models.PriceRequestPending, models.PriceRequestApproved)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load price request", err)
	}
	return pr, nil
}

func (s *PriceRequestService) UserRequests(ctx context.Context, principal models.Principal) ([]models.PriceRequest, error) {
	userID, err := parseObjectID(principal.UserID, "user id")
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list price requests", err)
	}
	return requests, nil
}

func (s *PriceRequestService) List(ctx context.Context, status models.PriceRequestStatus, page, limit int) ([]models.PriceRequest, models.MetaData, error) {
	page, limit = normalizePage(page, limit)
	requests, total, err := s.requests.List(ctx, status, page, limit)
	if err != nil {
		return nil, models.MetaData{}, apperrors.Internal("failed to list price requests", err)
	}
	return requests, models.NewMetaData(page, limit, total), nil
}

func priceKey(productID, size string) string { return productID + "|" + size }

// Approve quotes every item. Prices for lines not in the request are ignored.
func (s *PriceRequestService) Approve(ctx context.Context, id string, req models.ApprovePriceRequest) (*models.PriceRequest, error) {
	pr, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(req.Prices))
	for _, p := range req.Prices {
		if p.Price < 0 {
			return nil, apperrors.Validation("price must not be negative")
		}
		prices[priceKey(p.ProductID, p.Size)] = p.Price
	}

	var total float64
	for i := range pr.Items {
		it := &pr.Items[i]
		price, ok := prices[priceKey(it.ProductID.Hex(), it.Size)]
		if !ok {
			return nil, apperrors.Validation("missing price for %s size %s", it.Name, it.Size)
		}
		it.Price = &price
		total += price * float64(it.Quantity)
	}

	now := s.now()
	pr.TotalAmount = total
	pr.AdminNote = req.AdminNote
	pr.ApprovedAt = &now
	pr.Status = models.PriceRequestApproved
	if err := s.transition(ctx, pr, models.PriceRequestPending); err != nil {
		return nil, err
	}

	s.logger.Info("price request approved", zap.String("price_request_id", pr.ID.Hex()), zap.Float64("total", total))
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypePriceRequestApproved,
		Recipient: pr.UserEmail,
		Subject:   "Your price request has been approved",
		Data:      priceRequestNotificationData(pr),
	})
	return pr, nil
}

func (s *PriceRequestService) Reject(ctx context.Context, id string, reason string) (*models.PriceRequest, error) {
	pr, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	pr.Status = models.PriceRequestRejected
	pr.RejectionReason = reason
	if err := s.transition(ctx, pr, models.PriceRequestPending); err != nil {
		return nil, err
	}

	s.logger.Info("price request rejected", zap.String("price_request_id", pr.ID.Hex()))
	data := priceRequestNotificationData(pr)
	data["reason"] = reason
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypePriceRequestRejected,
		Recipient: pr.UserEmail,
		Subject:   "Your price request was declined",
		Data:      data,
	})
	return pr, nil
}

// ApprovedFor returns the request if it belongs to userID and is approved.
func (s *PriceRequestService) ApprovedFor(ctx context.Context, userID primitive.ObjectID, hexID string) (*models.PriceRequest, error) {
	id, err := parseObjectID(hexID, "price request id")
	if err != nil {
		return nil, err
	}
	pr, err := s.requests.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Validation("price request not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load price request", err)
	}
	if pr.UserID != userID {
		return nil, apperrors.Validation("price request does not belong to this user")
	}
	if pr.Status != models.PriceRequestApproved {
		return nil, apperrors.Validation("price request is %s, not approved", pr.Status)
	}
	if pr.OrderID != nil {
		return nil, errPriceRequestInUse
	}
	return pr, nil
}

var errPriceRequestInUse = apperrors.Validation("price request is already used by another order")

// Claim reserves an approved request for orderID. Only one order can hold a
// request; a second claim fails even when both orders passed ApprovedFor.
func (s *PriceRequestService) Claim(ctx context.Context, id, orderID primitive.ObjectID) error {
	err := s.requests.Claim(ctx, id, orderID)
	if errors.Is(err, repository.ErrVersionConflict) {
		return errPriceRequestInUse
	}
	if err != nil {
		return apperrors.Internal("failed to claim price request", err)
	}
	return nil
}

// ReleaseClaim frees a request held by an order that will not complete it.
// Completed requests and requests held by other orders are left alone.
func (s *PriceRequestService) ReleaseClaim(ctx context.Context, id, orderID primitive.ObjectID) error {
	err := s.requests.ReleaseClaim(ctx, id, orderID)
	if err != nil && !errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("release price request %s: %w", id.Hex(), err)
	}
	return nil
}

// Complete marks the request consumed by the order that claimed it.
func (s *PriceRequestService) Complete(ctx context.Context, id, orderID primitive.ObjectID) error {
	err := s.requests.Complete(ctx, id, orderID)
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("price request %s is not held by order %s", id.Hex(), orderID.Hex())
	}
	if err != nil {
		return fmt.Errorf("complete price request %s: %w", id.Hex(), err)
	}
	return nil
}

func (s *PriceRequestService) loadPending(ctx context.Context, hexID string) (*models.PriceRequest, error) {
	id, err := parseObjectID(hexID, "price request id")
	if err != nil {
		return nil, err
	}
	pr, err := s.requests.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("price request not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load price request", err)
	}
	if pr.Status != models.PriceRequestPending {
		return nil, apperrors.Validation("price request is %s, not pending", pr.Status)
	}
	return pr, nil
}

func (s *PriceRequestService) transition(ctx context.Context, pr *models.PriceRequest, from models.PriceRequestStatus) error {
	err := s.requests.Transition(ctx, pr, from)
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperrors.Validation("price request is no longer %s", from)
	}
	if err != nil {
		return apperrors.Internal("failed to update price request", err)
	}
	return nil
}

func priceRequestNotificationData(pr *models.PriceRequest) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(pr.Items))
	for _, it := range pr.Items {
		item := map[string]interface{}{
			"name":     it.Name,
			"size":     it.Size,
			"quantity": it.Quantity,
		}
		if it.Price != nil {
			item["price"] = *it.Price
		}
		items = append(items, item)
	}
	return map[string]interface{}{
		"priceRequestId": pr.ID.Hex(),
		"status":         string(pr.Status),
		"totalAmount":    pr.TotalAmount,
		"adminNote":      pr.AdminNote,
		"items":          items,
	}
}
