package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
	"github.com/Vaibhavdev309/tapestry/repository"
)

// Metrics is the subset of the CloudWatch client the services use.
type Metrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }

// maxStockWriteAttempts bounds the read-modify-write retry loop on version conflicts.
const maxStockWriteAttempts = 5

// InventoryService owns every mutation of Product.inventory.
type InventoryService struct {
	products repository.ProductRepository
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewInventoryService(products repository.ProductRepository, metrics Metrics, logger *zap.Logger) *InventoryService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &InventoryService{
		products: products,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdateStock applies one ledger operation. The write is conditional on the
// product version, so concurrent reservations cannot both take the last unit.
func (s *InventoryService) UpdateStock(ctx context.Context, productID primitive.ObjectID, change models.StockChange) (*models.Product, error) {
	return s.UpdateStockBatch(ctx, productID, []models.StockChange{change})
}

// UpdateStockBatch applies changes in order to one product and stores them
// with a single versioned save. Either every change lands or none does, so
// units released by one change cannot be taken by another writer before the
// next change runs.
func (s *InventoryService) UpdateStockBatch(ctx context.Context, productID primitive.ObjectID, changes []models.StockChange) (*models.Product, error) {
	now := s.now()
	p, err := s.mutate(ctx, productID, func(p *models.Product) error {
		for _, c := range changes {
			if err := p.UpdateStock(c, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		s.recordMovement(ctx, p, c)
	}
	return p, nil
}

// mutate re-reads the product and re-applies fn until the versioned save
// succeeds or the attempts run out.
func (s *InventoryService) mutate(ctx context.Context, productID primitive.ObjectID, fn func(*models.Product) error) (*models.Product, error) {
	for attempt := 1; attempt <= maxStockWriteAttempts; attempt++ {
		p, err := s.loadProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}

		err = s.products.Save(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.Internal("failed to save product", err)
		}

		s.logger.Debug("product version conflict, retrying",
			zap.String("product_id", productID.Hex()),
			zap.Int("attempt", attempt),
		)
		_ = s.metrics.RecordCount(ctx, awspkg.MetricInventoryConflicts, nil)
	}

	return nil, apperrors.Internal("product update contention", repository.ErrVersionConflict)
}

// UpdateStockByID is UpdateStock for a hex product id.
func (s *InventoryService) UpdateStockByID(ctx context.Context, productID string, change models.StockChange) (*models.Product, error) {
	id, err := parseObjectID(productID, "product id")
	if err != nil {
		return nil, err
	}
	return s.UpdateStock(ctx, id, change)
}

// CheckStock reports a size's counters. Unknown sizes report zeros.
func (s *InventoryService) CheckStock(ctx context.Context, productID primitive.ObjectID, size string) (models.StockLevel, error) {
	p, err := s.loadProduct(ctx, productID)
	if err != nil {
		return models.StockLevel{}, err
	}
	return p.Inventory.CheckStock(size), nil
}

func (s *InventoryService) ProductInventory(ctx context.Context, productID string) (*models.Product, error) {
	id, err := parseObjectID(productID, "product id")
	if err != nil {
		return nil, err
	}
	return s.loadProduct(ctx, id)
}

type InventoryOverview struct {
	TotalProducts      int     `json:"totalProducts"`
	TotalStock         int     `json:"totalStock"`
	AvailableStock     int     `json:"availableStock"`
	ReservedStock      int     `json:"reservedStock"`
	LowStockProducts   int     `json:"lowStockProducts"`
	OutOfStockProducts int     `json:"outOfStockProducts"`
	InventoryValue     float64 `json:"inventoryValue"`
}

func (s *InventoryService) Overview(ctx context.Context) (*InventoryOverview, error) {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load products", err)
	}

	out := &InventoryOverview{TotalProducts: len(products)}
	for _, p := range products {
		inv := p.Inventory
		out.TotalStock += inv.TotalStock
		out.AvailableStock += inv.AvailableStock
		out.ReservedStock += inv.ReservedStock
		out.InventoryValue += p.Price * float64(inv.TotalStock)
		if inv.LowStockAlert {
			out.LowStockProducts++
		}
		if inv.OutOfStock {
			out.OutOfStockProducts++
		}
	}
	return out, nil
}

type BulkStockUpdate struct {
	ProductID string                   `json:"productId" binding:"required"`
	Size      string                   `json:"size" binding:"required"`
	Quantity  int                      `json:"quantity" binding:"min=0"`
	Type      models.StockMovementType `json:"type" binding:"required"`
	Reason    string                   `json:"reason"`
}

type BulkItemResult struct {
	ProductID string           `json:"productId"`
	Size      string           `json:"size"`
	Inventory models.Inventory `json:"inventory"`
}

type BulkItemError struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Message   string `json:"message"`
}

type BulkUpdateResult struct {
	Results []BulkItemResult `json:"results"`
	Errors  []BulkItemError  `json:"errors"`
}

// BulkUpdate applies each update on its own; one failure never aborts the rest.
func (s *InventoryService) BulkUpdate(ctx context.Context, updates []BulkStockUpdate, userID string) *BulkUpdateResult {
	out := &BulkUpdateResult{Results: []BulkItemResult{}, Errors: []BulkItemError{}}

	for _, u := range updates {
		p, err := s.UpdateStockByID(ctx, u.ProductID, models.StockChange{
			Size:     u.Size,
			Quantity: u.Quantity,
			Type:     u.Type,
			Reason:   u.Reason,
			UserID:   userID,
		})
		if err != nil {
			s.logger.Warn("bulk stock update item failed",
				zap.String("product_id", u.ProductID),
				zap.String("size", u.Size),
				zap.Error(err),
			)
			out.Errors = append(out.Errors, BulkItemError{
				ProductID: u.ProductID,
				Size:      u.Size,
				Message:   apperrors.From(err).PublicMessage(),
			})
			continue
		}
		out.Results = append(out.Results, BulkItemResult{ProductID: u.ProductID, Size: u.Size, Inventory: p.Inventory})
	}
	return out
}

type StockAlert struct {
	ProductID  string                 `json:"productId"`
	Name       string                 `json:"name"`
	Category   string                 `json:"category"`
	OutOfStock bool                   `json:"outOfStock"`
	Available  int                    `json:"availableStock"`
	LowSizes   []models.SizeInventory `json:"lowSizes"`
}

func (s *InventoryService) Alerts(ctx context.Context) ([]StockAlert, error) {
	products, err := s.products.ListLowStock(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load low stock products", err)
	}

	alerts := make([]StockAlert, 0, len(products))
	for _, p := range products {
		a := StockAlert{
			ProductID:  p.ID.Hex(),
			Name:       p.Name,
			Category:   p.Category,
			OutOfStock: p.Inventory.OutOfStock,
			Available:  p.Inventory.AvailableStock,
			LowSizes:   []models.SizeInventory{},
		}
		for _, size := range p.Inventory.SizeInventory {
			if size.IsLow() {
				a.LowSizes = append(a.LowSizes, size)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

type MovementSummary struct {
	Type     models.StockMovementType `json:"type"`
	Count    int                      `json:"count"`
	Quantity int                      `json:"quantity"`
}

type ProductMovement struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type InventoryReport struct {
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Movements   []MovementSummary `json:"movements"`
	TopOutgoing []ProductMovement `json:"topOutgoing"`
}

const (
	defaultReportDays = 30
	maxReportDays     = 365
	topOutgoingLimit  = 10
)

// Report aggregates stock history over the last days.
func (s *InventoryService) Report(ctx context.Context, days int) (*InventoryReport, error) {
	if days <= 0 {
		days = defaultReportDays
	}
	if days > maxReportDays {
		days = maxReportDays
	}

	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load products", err)
	}

	to := s.now()
	from := to.AddDate(0, 0, -days)

	byType := map[models.StockMovementType]*MovementSummary{}
	for _, t := range []models.StockMovementType{models.StockIn, models.StockOut, models.StockAdjustment, models.StockReserved, models.StockReleased} {
		byType[t] = &MovementSummary{Type: t}
	}

	outgoing := []ProductMovement{}
	for _, p := range products {
		out := 0
		for _, h := range p.Inventory.StockHistory {
			if h.Date.Before(from) {
				continue
			}
			if sum, ok := byType[h.Type]; ok {
				sum.Count++
				sum.Quantity += h.Quantity
			}
			if h.Type == models.StockOut {
				out += h.Quantity
			}
		}
		if out > 0 {
			outgoing = append(outgoing, ProductMovement{ProductID: p.ID.Hex(), Name: p.Name, Quantity: out})
		}
	}

	sort.Slice(outgoing, func(i, j int) bool { return outgoing[i].Quantity > outgoing[j].Quantity })
	if len(outgoing) > topOutgoingLimit {
		outgoing = outgoing[:topOutgoingLimit]
	}

	report := &InventoryReport{From: from, To: to, TopOutgoing: outgoing}
	for _, t := range []models.StockMovementType{models.StockIn, models.StockOut, models.StockAdjustment, models.StockReserved, models.StockReleased} {
		report.Movements = append(report.Movements, *byType[t])
	}
	return report, nil
}

func (s *InventoryService) loadProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("product not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load product", err)
	}
	return p, nil
}

func (s *InventoryService) recordMovement(ctx context.Context, p *models.Product, change models.StockChange) {
	dims := map[string]string{"Size": change.Size}
	switch change.Type {
	case models.StockReserved:
		_ = s.metrics.RecordCount(ctx, awspkg.MetricInventoryReserved, dims)
	case models.StockReleased:
		_ = s.metrics.RecordCount(ctx, awspkg.MetricInventoryReleased, dims)
	case models.StockOut:
		_ = s.metrics.RecordCount(ctx, awspkg.MetricInventoryDeducted, dims)
	}
	if p.Inventory.LowStockAlert {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricInventoryLow, map[string]string{"Product": p.ID.Hex()})
	}
}
