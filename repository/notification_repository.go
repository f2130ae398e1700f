package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vaibhavdev309/tapestry/models"
)

type NotificationRepository interface {
	Enqueue(ctx context.Context, job *models.NotificationJob) error
	// ClaimDue locks up to limit due jobs and pushes their next attempt out by
	// lease so concurrent workers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationJob, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationJob, int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Enqueue(ctx context.Context, job *models.NotificationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.NotificationPending
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *notificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", models.NotificationPending, now).
			Order("next_attempt_at").
			Limit(limit).
			Find(&jobs).Error
		if err != nil || len(jobs) == 0 {
			return err
		}

		ids := make([]uuid.UUID, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		return tx.Model(&models.NotificationJob{}).
			Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.NotificationSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"sent_at":    at,
			"last_error": "",
		}).Error
}

func (r *notificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	return r.db.WithContext(ctx).Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": next,
			"last_error":      lastErr,
		}).Error
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.db.WithContext(ctx).Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.NotificationFailed,
			"attempts":   attempts,
			"last_error": lastErr,
		}).Error
}

func (r *notificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationJob, int64, error) {
	var jobs []models.NotificationJob
	var total int64

	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	query := r.db.WithContext(ctx).Model(&models.NotificationJob{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&jobs).Error
	return jobs, total, err
}
