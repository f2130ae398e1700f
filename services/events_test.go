package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Vaibhavdev309/tapestry/models"
)

type MockSNSPublisher struct{ mock.Mock }

func (m *MockSNSPublisher) Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]string) error {
	args := m.Called(ctx, topicArn, message, attributes)
	return args.Error(0)
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            primitive.NewObjectID(),
		OrderNumber:   "ORD-123456-abcdef",
		UserID:        primitive.NewObjectID(),
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
		Amount:        1250,
	}
}

func TestSNSEventPublisher(t *testing.T) {
	client := new(MockSNSPublisher)
	o := sampleOrder()

	client.On("Publish", mock.Anything, "arn:aws:sns:ap-south-1:123:orders",
		mock.MatchedBy(func(body []byte) bool {
			var evt models.OrderEvent
			return json.Unmarshal(body, &evt) == nil && evt.OrderID == o.ID.Hex() && evt.Amount == 1250
		}),
		map[string]string{"event_type": models.EventOrderPlaced},
	).Return(nil).Once()

	pub := NewSNSEventPublisher(client, "arn:aws:sns:ap-south-1:123:orders")
	require.NoError(t, pub.PublishOrderEvent(context.Background(), models.NewOrderEvent(models.EventOrderPlaced, o)))
	client.AssertExpectations(t)
}

type failingPublisher struct{ err error }

func (f failingPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return f.err }

func TestMultiPublisher_PublishesEverywhere(t *testing.T) {
	first, second := &fakePublisher{}, &fakePublisher{}
	boom := errors.New("broker unavailable")
	multi := MultiPublisher{first, failingPublisher{err: boom}, second}

	err := multi.PublishOrderEvent(context.Background(), models.NewOrderEvent(models.EventOrderRefunded, sampleOrder()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{models.EventOrderRefunded}, first.types())
	assert.Equal(t, []string{models.EventOrderRefunded}, second.types())

	assert.NoError(t, MultiPublisher{}.PublishOrderEvent(context.Background(), models.OrderEvent{}))
	assert.NoError(t, NewNoopPublisher().PublishOrderEvent(context.Background(), models.OrderEvent{}))
}
