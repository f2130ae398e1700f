package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type PriceRequestService interface {
	Create(ctx context.Context, principal models.Principal, req models.CreatePriceRequest) (*models.PriceRequest, error)
	Current(ctx context.Context, principal models.Principal) (*models.PriceRequest, error)
	UserRequests(ctx context.Context, principal models.Principal) ([]models.PriceRequest, error)
	List(ctx context.Context, status models.PriceRequestStatus, page, limit int) ([]models.PriceRequest, models.MetaData, error)
	Approve(ctx context.Context, id string, req models.ApprovePriceRequest) (*models.PriceRequest, error)
	Reject(ctx context.Context, id string, reason string) (*models.PriceRequest, error)
}

type PriceRequestController struct {
	requests PriceRequestService
	logger   *zap.Logger
}

func NewPriceRequestController(requests PriceRequestService, logger *zap.Logger) *PriceRequestController {
	return &PriceRequestController{requests: requests, logger: logger}
}

func (pc *PriceRequestController) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreatePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := pc.requests.Create(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Price request submitted", "priceRequest": pr})
}

// Current returns the caller's open request, or null when there is none.
func (pc *PriceRequestController) Current(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	pr, err := pc.requests.Current(c.Request.Context(), p)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "priceRequest": pr})
}

func (pc *PriceRequestController) Mine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := pc.requests.UserRequests(c.Request.Context(), p)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "priceRequests": list})
}

func (pc *PriceRequestController) List(c *gin.Context) {
	page, limit := pagination(c)
	list, meta, err := pc.requests.List(c.Request.Context(), models.PriceRequestStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "priceRequests": list, "meta": meta})
}

func (pc *PriceRequestController) Approve(c *gin.Context) {
	var req models.ApprovePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := pc.requests.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Price request approved", "priceRequest": pr})
}

func (pc *PriceRequestController) Reject(c *gin.Context) {
	var req models.RejectPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := pc.requests.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Price request rejected", "priceRequest": pr})
}
