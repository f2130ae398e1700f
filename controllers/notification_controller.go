package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type NotificationService interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationJob, models.MetaData, error)
}

type NotificationController struct {
	notifications NotificationService
	logger        *zap.Logger
}

func NewNotificationController(notifications NotificationService, logger *zap.Logger) *NotificationController {
	return &NotificationController{notifications: notifications, logger: logger}
}

// List handles GET /notifications?status=&type=&page=&limit=
func (nc *NotificationController) List(c *gin.Context) {
	page, limit := pagination(c)
	jobs, meta, err := nc.notifications.List(c.Request.Context(), models.NotificationFilter{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		respondError(c, nc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": jobs, "meta": meta})
}
