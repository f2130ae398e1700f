package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
	"github.com/Vaibhavdev309/tapestry/repository"
	"github.com/Vaibhavdev309/tapestry/sender"
)

//go:embed templates/*.html
var templateFS embed.FS

var notificationTemplates = map[string]string{
	models.TypeOrderPlaced:          "templates/order_placed.html",
	models.TypeOrderStatusUpdated:   "templates/order_status_updated.html",
	models.TypePaymentConfirmed:     "templates/payment_confirmed.html",
	models.TypePaymentRefunded:      "templates/payment_refunded.html",
	models.TypePriceRequestApproved: "templates/price_request_approved.html",
	models.TypePriceRequestRejected: "templates/price_request_rejected.html",
	models.TypeUserRegistered:       "templates/user_registered.html",
}

const (
	DefaultPollInterval = 10 * time.Second
	notificationBatch   = 20
	claimLease          = 2 * time.Minute
	backoffBase         = 30 * time.Second
	backoffCap          = time.Hour
)

// Backoff returns the delay before retry number attempts (1-based).
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// NotificationWorker drains the outbox: it claims due jobs, renders them and
// hands them to the email sender, rescheduling failures with backoff.
type NotificationWorker struct {
	repo      repository.NotificationRepository
	sender    sender.EmailSender
	templates map[string]*template.Template
	interval  time.Duration
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationWorker(
	repo repository.NotificationRepository,
	emailSender sender.EmailSender,
	interval time.Duration,
	metrics Metrics,
	logger *zap.Logger,
) (*NotificationWorker, error) {
	tmpls := make(map[string]*template.Template, len(notificationTemplates))
	for notifType, file := range notificationTemplates {
		tmpl, err := template.ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", notifType, err)
		}
		tmpls[notifType] = tmpl
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &NotificationWorker{
		repo:      repo,
		sender:    emailSender,
		templates: tmpls,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run polls until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("notification poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue handles one batch and returns how many jobs it attempted.
func (w *NotificationWorker) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := w.repo.ClaimDue(ctx, w.now(), notificationBatch, claimLease)
	if err != nil {
		return 0, err
	}
	for i := range jobs {
		w.handle(ctx, &jobs[i])
	}
	return len(jobs), nil
}

func (w *NotificationWorker) handle(ctx context.Context, job *models.NotificationJob) {
	attempts := job.Attempts + 1
	log := w.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("type", job.Type),
		zap.Int("attempt", attempts),
	)

	body, err := w.Render(job.Type, job.Payload)
	if err == nil {
		_, err = w.sender.SendEmail(ctx, job.Recipient, job.Subject, body)
	}

	if err == nil {
		if markErr := w.repo.MarkSent(ctx, job.ID, w.now()); markErr != nil {
			log.Error("failed to mark notification sent", zap.Error(markErr))
			return
		}
		_ = w.metrics.RecordCount(ctx, awspkg.MetricNotificationsSent, map[string]string{"Type": job.Type})
		log.Info("notification sent")
		return
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultNotificationMaxAttempts
	}

	if attempts >= maxAttempts {
		if markErr := w.repo.MarkFailed(ctx, job.ID, attempts, err.Error()); markErr != nil {
			log.Error("failed to mark notification failed", zap.Error(markErr))
			return
		}
		_ = w.metrics.RecordCount(ctx, awspkg.MetricNotificationsFail, map[string]string{"Type": job.Type})
		log.Error("notification permanently failed", zap.Error(err))
		return
	}

	next := w.now().Add(Backoff(attempts))
	if markErr := w.repo.MarkRetry(ctx, job.ID, attempts, next, err.Error()); markErr != nil {
		log.Error("failed to reschedule notification", zap.Error(markErr))
		return
	}
	log.Warn("notification send failed, will retry", zap.Time("next_attempt_at", next), zap.Error(err))
}

// Render executes the template for notifType against a JSON payload.
func (w *NotificationWorker) Render(notifType, payload string) (string, error) {
	tmpl, ok := w.templates[notifType]
	if !ok {
		return "", fmt.Errorf("unsupported notification type: %s", notifType)
	}

	data := map[string]interface{}{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			return "", fmt.Errorf("decode payload: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template render failed: %w", err)
	}
	return buf.String(), nil
}
