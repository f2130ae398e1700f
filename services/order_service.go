package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
	"github.com/Vaibhavdev309/tapestry/repository"
)

const maxOrderWriteAttempts = 5

type OrderService struct {
	orders        repository.OrderRepository
	priceRequests *PriceRequestService
	carts         repository.CartRepository
	inventory     *InventoryService
	notifier      Notifier
	publisher     EventPublisher
	metrics       Metrics
	logger        *zap.Logger
	now           func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	priceRequests *PriceRequestService,
	carts repository.CartRepository,
	inventory *InventoryService,
	notifier Notifier,
	publisher EventPublisher,
	metrics Metrics,
	logger *zap.Logger,
) *OrderService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &OrderService{
		orders:        orders,
		priceRequests: priceRequests,
		carts:         carts,
		inventory:     inventory,
		notifier:      notifier,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder checks, reserves and persists a cash-on-delivery order in one
// call. Online orders need a gateway order and start at CreateRazorpayOrder.
func (s *OrderService) PlaceOrder(ctx context.Context, principal models.Principal, req models.PlaceOrderRequest) (*models.Order, error) {
	if req.PaymentMethod != "" && req.PaymentMethod != models.PaymentMethodCOD {
		return nil, apperrors.Validation("payment method %q is not accepted here; online payments start at create-order", req.PaymentMethod)
	}
	o, err := s.PrepareOrder(ctx, principal, req.Items, req.Address, models.PaymentMethodCOD, req.PriceRequestID)
	if err != nil {
		return nil, err
	}
	if err := s.CommitOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// PrepareOrder validates and prices the lines and checks stock. Nothing is
// persisted or reserved; the returned order carries its id and number.
func (s *OrderService) PrepareOrder(
	ctx context.Context,
	principal models.Principal,
	lines []models.OrderLine,
	address models.Address,
	method models.PaymentMethod,
	priceRequestID string,
) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}
	if method != models.PaymentMethodCOD && method != models.PaymentMethodRazorpay {
		return nil, apperrors.Validation("unsupported payment method %q", method)
	}
	userID, err := parseObjectID(principal.UserID, "user id")
	if err != nil {
		return nil, err
	}

	var pr *models.PriceRequest
	if priceRequestID != "" {
		pr, err = s.priceRequests.ApprovedFor(ctx, userID, priceRequestID)
		if err != nil {
			return nil, err
		}
	}

	items := make([]models.OrderItem, 0, len(lines))
	var amount float64
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperrors.Validation("quantity must be at least 1")
		}
		productID, err := parseObjectID(line.ProductID, "product id")
		if err != nil {
			return nil, err
		}
		p, err := s.inventory.loadProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		price, err := priceFor(p, line.Size, pr)
		if err != nil {
			return nil, err
		}

		level := p.Inventory.CheckStock(line.Size)
		if level.Available < line.Quantity {
			return nil, apperrors.InsufficientStock("insufficient stock for %s size %s: available %d, requested %d",
				p.Name, line.Size, level.Available, line.Quantity)
		}

		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			Price:     price,
		})
		amount += price * float64(line.Quantity)
	}

	now := s.now()
	o := &models.Order{
		ID:             primitive.NewObjectID(),
		OrderNumber:    GenerateOrderNumber(now),
		UserID:         userID,
		UserEmail:      principal.Email,
		Items:          items,
		Amount:         amount,
		Address:        address,
		Status:         models.OrderPending,
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentPending,
		InventoryState: models.InventoryReserved,
		StatusHistory: []models.StatusChange{{
			Status:        models.OrderPending,
			PaymentStatus: models.PaymentPending,
			Date:          now,
			Note:          "Order placed",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pr != nil {
		o.PriceRequest = &pr.ID
	}
	return o, nil
}

// CommitOrder claims the linked price request, reserves every item and
// persists o. On any failure the claim and the reservations already taken are
// released and no order is stored.
func (s *OrderService) CommitOrder(ctx context.Context, o *models.Order) error {
	log := s.logger.With(zap.String("order_id", o.ID.Hex()), zap.String("order_number", o.OrderNumber))

	if o.PriceRequest != nil {
		if err := s.priceRequests.Claim(ctx, *o.PriceRequest, o.ID); err != nil {
			return err
		}
	}

	for i, it := range o.Items {
		_, err := s.inventory.UpdateStock(ctx, it.ProductID, models.StockChange{
			Size:     it.Size,
			Quantity: it.Quantity,
			Type:     models.StockReserved,
			Reason:   "Order " + o.OrderNumber + " placed",
			OrderID:  o.ID.Hex(),
			UserID:   o.UserID.Hex(),
		})
		if err != nil {
			log.Warn("reservation failed, rolling back",
				zap.String("product_id", it.ProductID.Hex()),
				zap.String("size", it.Size),
				zap.Error(err),
			)
			s.releaseItems(ctx, o, o.Items[:i], "Order "+o.OrderNumber+" rolled back")
			s.releasePriceRequest(ctx, o)
			return err
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		log.Error("failed to persist order, releasing reservations", zap.Error(err))
		s.releaseItems(ctx, o, o.Items, "Order "+o.OrderNumber+" rolled back")
		s.releasePriceRequest(ctx, o)
		return apperrors.Internal("failed to create order", err)
	}

	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(o.PaymentMethod)})
	log.Info("order placed", zap.Float64("amount", o.Amount), zap.String("payment_method", string(o.PaymentMethod)))

	if o.PaymentMethod == models.PaymentMethodCOD {
		s.Finalize(ctx, o)
		notify(ctx, s.notifier, s.logger, models.Notification{
			Type:      models.TypeOrderPlaced,
			Recipient: orderRecipient(o),
			Subject:   "Order " + o.OrderNumber + " confirmed",
			Data:      orderNotificationData(o),
		})
	}
	publishOrderEvent(ctx, s.publisher, s.logger, models.EventOrderPlaced, o)
	return nil
}

// Finalize runs the post-commitment side effects: the cart is cleared and a
// linked price request is completed. Failures are logged.
func (s *OrderService) Finalize(ctx context.Context, o *models.Order) {
	if err := s.carts.DeleteCart(ctx, o.UserID.Hex()); err != nil {
		s.logger.Warn("failed to clear cart", zap.String("user_id", o.UserID.Hex()), zap.Error(err))
	}
	if o.PriceRequest == nil {
		return
	}
	if err := s.priceRequests.Complete(ctx, *o.PriceRequest, o.ID); err != nil {
		s.logger.Warn("failed to complete price request", zap.String("price_request_id", o.PriceRequest.Hex()), zap.Error(err))
	}
}

// InventoryItemError reports a ledger effect that could not be applied to one item.
type InventoryItemError struct {
	ProductID string                   `json:"productId"`
	Size      string                   `json:"size"`
	Operation models.StockMovementType `json:"operation"`
	Message   string                   `json:"message"`
}

type TransitionOutcome struct {
	Order   *models.Order
	Applied bool
	Errors  []InventoryItemError
}

// ApplyEvent runs e through Transition and persists the result with a version
// check, retrying on conflict. Inventory effects are applied only by the
// writer that won, so each hold is released or deducted once.
func (s *OrderService) ApplyEvent(ctx context.Context, id primitive.ObjectID, e Event, note string, mutate func(*models.Order)) (*TransitionOutcome, error) {
	for attempt := 1; attempt <= maxOrderWriteAttempts; attempt++ {
		o, err := s.loadOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		outcome, err := s.applyTo(ctx, o, e, note, mutate)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Debug("order version conflict, retrying", zap.String("order_id", id.Hex()), zap.Int("attempt", attempt))
			continue
		}
		return outcome, err
	}
	return nil, apperrors.Internal("order update contention", repository.ErrVersionConflict)
}

func (s *OrderService) applyTo(ctx context.Context, o *models.Order, e Event, note string, mutate func(*models.Order)) (*TransitionOutcome, error) {
	next, effects, err := Transition(stateOf(o), e)
	if errors.Is(err, ErrEventIgnored) {
		s.logger.Info("order event ignored",
			zap.String("order_id", o.ID.Hex()),
			zap.String("event", e.Kind.String()),
			zap.String("payment_status", string(o.PaymentStatus)),
		)
		return &TransitionOutcome{Order: o}, nil
	}
	if err != nil {
		return nil, err
	}

	o.Status = next.Status
	o.PaymentStatus = next.PaymentStatus
	o.InventoryState = next.InventoryState
	if mutate != nil {
		mutate(o)
	}
	o.StatusHistory = append(o.StatusHistory, models.StatusChange{
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Date:          s.now(),
		Note:          note,
	})

	if err := s.orders.Update(ctx, o); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperrors.Internal("failed to update order", err)
	}

	return &TransitionOutcome{Order: o, Applied: true, Errors: s.applyEffects(ctx, o, effects)}, nil
}

// applyEffects runs the effects for each item as one ledger write, so a
// deduction's release and stock-out cannot be split by a concurrent
// reservation. A failed item reports the last operation of the sequence.
func (s *OrderService) applyEffects(ctx context.Context, o *models.Order, effects []InventoryEffect) []InventoryItemError {
	errs := []InventoryItemError{}
	if len(effects) == 0 {
		return errs
	}
	op := effects[len(effects)-1].Type
	for _, it := range o.Items {
		changes := make([]models.StockChange, 0, len(effects))
		for _, eff := range effects {
			changes = append(changes, models.StockChange{
				Size:     it.Size,
				Quantity: it.Quantity,
				Type:     eff.Type,
				Reason:   fmt.Sprintf("Order %s %s", o.OrderNumber, o.Status),
				OrderID:  o.ID.Hex(),
				UserID:   o.UserID.Hex(),
			})
		}
		if _, err := s.inventory.UpdateStockBatch(ctx, it.ProductID, changes); err != nil {
			s.logger.Error("inventory effect failed",
				zap.String("order_id", o.ID.Hex()),
				zap.String("product_id", it.ProductID.Hex()),
				zap.String("size", it.Size),
				zap.String("operation", string(op)),
				zap.Error(err),
			)
			errs = append(errs, InventoryItemError{
				ProductID: it.ProductID.Hex(),
				Size:      it.Size,
				Operation: op,
				Message:   apperrors.From(err).PublicMessage(),
			})
		}
	}
	return errs
}

// UpdateStatus is the admin status change. Inventory failures on individual
// items are reported, not fatal.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*TransitionOutcome, error) {
	id, err := parseObjectID(orderID, "order id")
	if err != nil {
		return nil, err
	}

	outcome, err := s.ApplyEvent(ctx, id, SetStatus(status), "Status set to "+string(status), nil)
	if err != nil {
		return nil, err
	}
	o := outcome.Order

	if status == models.OrderCancelled {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCancelled, nil)
		// An unpaid order gives its quote back; a completed one stays consumed.
		s.releasePriceRequest(ctx, o)
	}
	s.logger.Info("order status updated",
		zap.String("order_id", o.ID.Hex()),
		zap.String("status", string(o.Status)),
		zap.String("inventory_state", string(o.InventoryState)),
		zap.Int("inventory_errors", len(outcome.Errors)),
	)

	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypeOrderStatusUpdated,
		Recipient: orderRecipient(o),
		Subject:   "Order " + o.OrderNumber + " is " + string(o.Status),
		Data:      orderNotificationData(o),
	})
	publishOrderEvent(ctx, s.publisher, s.logger, models.EventOrderStatusChanged, o)
	return outcome, nil
}

func (s *OrderService) UserOrders(ctx context.Context, principal models.Principal, page, limit int) (*models.OrderList, error) {
	userID, err := parseObjectID(principal.UserID, "user id")
	if err != nil {
		return nil, err
	}
	return s.list(ctx, models.OrderFilter{UserID: &userID, Page: page, Limit: limit})
}

func (s *OrderService) AllOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*models.OrderList, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validation("invalid order status %q", status)
	}
	return s.list(ctx, models.OrderFilter{Status: status, Page: page, Limit: limit})
}

func (s *OrderService) list(ctx context.Context, f models.OrderFilter) (*models.OrderList, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, apperrors.Internal("failed to list orders", err)
	}
	return &models.OrderList{Orders: orders, Meta: models.NewMetaData(f.Page, f.Limit, total)}, nil
}

// GetOrder returns the order if principal owns it or is an admin.
func (s *OrderService) GetOrder(ctx context.Context, principal models.Principal, orderID string) (*models.Order, error) {
	id, err := parseObjectID(orderID, "order id")
	if err != nil {
		return nil, err
	}
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && o.UserID.Hex() != principal.UserID {
		return nil, apperrors.Forbidden("not allowed to access this order")
	}
	return o, nil
}

func (s *OrderService) loadOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load order", err)
	}
	return o, nil
}

func (s *OrderService) releaseItems(ctx context.Context, o *models.Order, items []models.OrderItem, reason string) {
	for _, it := range items {
		_, err := s.inventory.UpdateStock(ctx, it.ProductID, models.StockChange{
			Size:     it.Size,
			Quantity: it.Quantity,
			Type:     models.StockReleased,
			Reason:   reason,
			OrderID:  o.ID.Hex(),
			UserID:   o.UserID.Hex(),
		})
		if err != nil {
			s.logger.Error("failed to release reservation",
				zap.String("order_id", o.ID.Hex()),
				zap.String("product_id", it.ProductID.Hex()),
				zap.String("size", it.Size),
				zap.Error(err),
			)
		}
	}
}

func (s *OrderService) releasePriceRequest(ctx context.Context, o *models.Order) {
	if o.PriceRequest == nil {
		return
	}
	if err := s.priceRequests.ReleaseClaim(ctx, *o.PriceRequest, o.ID); err != nil {
		s.logger.Error("failed to release price request",
			zap.String("order_id", o.ID.Hex()),
			zap.String("price_request_id", o.PriceRequest.Hex()),
			zap.Error(err),
		)
	}
}

// priceFor picks the approved quote when one is given, else the list price.
func priceFor(p *models.Product, size string, pr *models.PriceRequest) (float64, error) {
	if pr != nil {
		price, ok := pr.PriceFor(p.ID, size)
		if !ok {
			return 0, apperrors.Validation("%s size %s is not part of the price request", p.Name, size)
		}
		return price, nil
	}
	if p.PriceOnRequest {
		return 0, apperrors.Validation("%s is priced on request; an approved price request is required", p.Name)
	}
	return p.Price, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateOrderNumber returns ORD-<last 6 digits of epoch ms>-<6 base36 chars>.
func GenerateOrderNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "ORD-" + ms + "-" + string(suffix)
}

// findByGateway looks an order up by payment id, falling back to the gateway
// order id. Either may be empty.
func (s *OrderService) findByGateway(ctx context.Context, paymentID, gatewayOrderID string) (*models.Order, error) {
	if paymentID != "" {
		o, err := s.orders.FindByGatewayPaymentID(ctx, paymentID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal("failed to load order", err)
		}
	}
	if gatewayOrderID != "" {
		o, err := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal("failed to load order", err)
		}
	}
	return nil, apperrors.NotFound("order not found")
}
