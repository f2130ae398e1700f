package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
)

// EventPublisher fans order lifecycle events out to downstream consumers.
// Publishing is best-effort: callers log failures and move on.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }

func NewNoopPublisher() EventPublisher { return noopPublisher{} }

// SNSEventPublisher publishes order events to an SNS topic with an
// event_type attribute for subscription filtering.
type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{"event_type": evt.Type})
}

// MultiPublisher publishes to every sink and joins the errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishOrderEvent(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func publishOrderEvent(ctx context.Context, pub EventPublisher, logger *zap.Logger, eventType string, o *models.Order) {
	if err := pub.PublishOrderEvent(ctx, models.NewOrderEvent(eventType, o)); err != nil {
		logger.Warn("order event publish failed",
			zap.String("order_id", o.ID.Hex()),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}
