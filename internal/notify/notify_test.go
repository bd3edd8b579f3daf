package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_StatusChanged(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	ev := models.StatusChange{
		OrderID:        uuid.New(),
		ItemID:         uuid.New(),
		PreviousStatus: status.Ordered,
		Status:         status.Shipped,
		Quantity:       2,
		Source:         models.SourceAdmin,
		OccurredAt:     time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.StatusChanged(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, ev.OrderID.String(), string(msg.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, EventStatusChange, got["type"])
	assert.Equal(t, "Shipped", got["status"])
	assert.Equal(t, "Ordered", got["previous_status"])
	assert.EqualValues(t, 2, got["quantity"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(w)

	err := p.StatusChanged(context.Background(), models.StatusChange{OrderID: uuid.New()})
	assert.ErrorContains(t, err, "broker down")
}
