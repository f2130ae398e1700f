package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/repository"
)

// Notifier accepts notifications for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

const DefaultNotificationMaxAttempts = 5

// OutboxNotifier stores notifications as pending jobs for the worker.
type OutboxNotifier struct {
	repo        repository.NotificationRepository
	maxAttempts int
	logger      *zap.Logger
}

func NewOutboxNotifier(repo repository.NotificationRepository, maxAttempts int, logger *zap.Logger) *OutboxNotifier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultNotificationMaxAttempts
	}
	return &OutboxNotifier{repo: repo, maxAttempts: maxAttempts, logger: logger}
}

func (n *OutboxNotifier) Enqueue(ctx context.Context, notif models.Notification) error {
	if _, ok := notificationTemplates[notif.Type]; !ok {
		return fmt.Errorf("unsupported notification type: %s", notif.Type)
	}
	if notif.Recipient == "" {
		return fmt.Errorf("notification %s has no recipient", notif.Type)
	}

	payload, err := json.Marshal(notif.Data)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	job := &models.NotificationJob{
		Type:        notif.Type,
		Recipient:   notif.Recipient,
		Subject:     notif.Subject,
		Payload:     string(payload),
		MaxAttempts: n.maxAttempts,
	}
	if err := n.repo.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	n.logger.Debug("notification enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("type", notif.Type),
	)
	return nil
}

// DiscardNotifier drops notifications. Used when no outbox database is configured.
type DiscardNotifier struct {
	logger *zap.Logger
}

func NewDiscardNotifier(logger *zap.Logger) *DiscardNotifier {
	return &DiscardNotifier{logger: logger}
}

func (n *DiscardNotifier) Enqueue(_ context.Context, notif models.Notification) error {
	n.logger.Info("notification dropped, outbox disabled",
		zap.String("type", notif.Type),
		zap.String("recipient", notif.Recipient),
	)
	return nil
}

// notify enqueues n and logs instead of failing the caller.
func notify(ctx context.Context, notifier Notifier, logger *zap.Logger, n models.Notification) {
	if n.Recipient == "" {
		logger.Debug("notification skipped, no recipient", zap.String("type", n.Type))
		return
	}
	if err := notifier.Enqueue(ctx, n); err != nil {
		logger.Warn("notification enqueue failed", zap.String("type", n.Type), zap.Error(err))
	}
}

// NotificationService serves the admin view of the outbox.
type NotificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService accepts a nil repo; List then reports an empty outbox.
func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationJob, models.MetaData, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size

	if s.repo == nil {
		return []models.NotificationJob{}, models.NewMetaData(page, size, 0), nil
	}

	jobs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.MetaData{}, apperrors.Internal("failed to list notifications", err)
	}
	return jobs, models.NewMetaData(page, size, total), nil
}

func orderNotificationData(o *models.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]interface{}{
			"name":     it.Name,
			"size":     it.Size,
			"quantity": it.Quantity,
			"price":    it.Price,
		})
	}
	return map[string]interface{}{
		"orderId":       o.ID.Hex(),
		"orderNumber":   o.OrderNumber,
		"name":          o.Address.FullName,
		"amount":        o.Amount,
		"status":        string(o.Status),
		"paymentStatus": string(o.PaymentStatus),
		"paymentMethod": string(o.PaymentMethod),
		"items":         items,
	}
}

// orderRecipient prefers the contact address on the order over the account email.
func orderRecipient(o *models.Order) string {
	if o.Address.Email != "" {
		return o.Address.Email
	}
	return o.UserEmail
}
