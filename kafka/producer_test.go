package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_PublishOrderEvent(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "order-events", logger: zap.NewNop()}

	evt := models.OrderEvent{Type: models.EventOrderPlaced, OrderID: "65f0c0ffee", OrderNumber: "ORD-123456-abcdef", Amount: 999}
	require.NoError(t, p.PublishOrderEvent(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "65f0c0ffee", string(msg.Key))
	assert.Empty(t, msg.Topic)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, models.EventOrderPlaced, string(msg.Headers[0].Value))

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.OrderNumber, decoded.OrderNumber)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, topic: "order-events", logger: zap.NewNop()}

	err := p.PublishOrderEvent(context.Background(), models.OrderEvent{OrderID: "x"})
	assert.ErrorContains(t, err, "broker down")
}
