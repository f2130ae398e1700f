package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/services"
)

type InventoryService interface {
	Overview(ctx context.Context) (*services.InventoryOverview, error)
	ProductInventory(ctx context.Context, productID string) (*models.Product, error)
	UpdateStockByID(ctx context.Context, productID string, change models.StockChange) (*models.Product, error)
	BulkUpdate(ctx context.Context, updates []services.BulkStockUpdate, userID string) *services.BulkUpdateResult
	Alerts(ctx context.Context) ([]services.StockAlert, error)
	Report(ctx context.Context, days int) (*services.InventoryReport, error)
}

// LedgerRequest is the body of the direct reserve and release endpoints.
type LedgerRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	OrderID   string `json:"orderId"`
	Reason    string `json:"reason"`
}

type BulkUpdateRequest struct {
	Updates []services.BulkStockUpdate `json:"updates" binding:"required,min=1,dive"`
}

type InventoryController struct {
	inventory InventoryService
	logger    *zap.Logger
}

func NewInventoryController(inventory InventoryService, logger *zap.Logger) *InventoryController {
	return &InventoryController{inventory: inventory, logger: logger}
}

func (ic *InventoryController) Overview(c *gin.Context) {
	overview, err := ic.inventory.Overview(c.Request.Context())
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "overview": overview})
}

func (ic *InventoryController) ProductInventory(c *gin.Context) {
	product, err := ic.inventory.ProductInventory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"productId": product.ID.Hex(),
		"name":      product.Name,
		"sizes":     product.Sizes,
		"inventory": product.Inventory,
	})
}

// UpdateStock handles PUT /inventory/:id/stock with the acting admin recorded in history.
func (ic *InventoryController) UpdateStock(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var change models.StockChange
	if !bindJSON(c, &change) {
		return
	}
	change.UserID = p.UserID

	product, err := ic.inventory.UpdateStockByID(c.Request.Context(), c.Param("id"), change)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stock updated", "inventory": product.Inventory})
}

func (ic *InventoryController) BulkUpdate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req BulkUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	result := ic.inventory.BulkUpdate(c.Request.Context(), req.Updates, p.UserID)
	c.JSON(http.StatusOK, gin.H{
		"success": len(result.Errors) == 0,
		"results": result.Results,
		"errors":  result.Errors,
	})
}

func (ic *InventoryController) Reserve(c *gin.Context) {
	ic.ledger(c, models.StockReserved, "Stock reserved")
}

func (ic *InventoryController) Release(c *gin.Context) {
	ic.ledger(c, models.StockReleased, "Stock released")
}

func (ic *InventoryController) ledger(c *gin.Context, movement models.StockMovementType, message string) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req LedgerRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := ic.inventory.UpdateStockByID(c.Request.Context(), req.ProductID, models.StockChange{
		Size:     req.Size,
		Quantity: req.Quantity,
		Type:     movement,
		Reason:   req.Reason,
		OrderID:  req.OrderID,
		UserID:   p.UserID,
	})
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"stock":   product.Inventory.CheckStock(req.Size),
	})
}

func (ic *InventoryController) Alerts(c *gin.Context) {
	alerts, err := ic.inventory.Alerts(c.Request.Context())
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": alerts, "count": len(alerts)})
}

// Reports handles GET /inventory/reports?days=N; clamping happens in the service.
func (ic *InventoryController) Reports(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	report, err := ic.inventory.Report(c.Request.Context(), days)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
