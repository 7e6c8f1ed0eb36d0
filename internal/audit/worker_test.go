package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error { a.acked++; return nil }
func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return nil }

type fakeLog struct {
	err  error
	seen []string
}

func (f *fakeLog) LogBookingEvent(ctx context.Context, messageID, eventType string, ev domain.BookingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.seen = append(f.seen, messageID)
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, body []byte) amqp.Delivery {
	t.Helper()
	return amqp.Delivery{
		Acknowledger: ack,
		MessageId:    "booking.created:1",
		RoutingKey:   domain.EventBookingCreated,
		Body:         body,
	}
}

func TestHandle(t *testing.T) {
	body, err := json.Marshal(domain.BookingEvent{BookingID: uuid.New(), Username: "alice"})
	require.NoError(t, err)

	t.Run("stored", func(t *testing.T) {
		ack, log := &ackRecorder{}, &fakeLog{}
		NewWorker(log, observability.NopLogger()).Handle(context.Background(), delivery(t, ack, body))
		assert.Equal(t, 1, ack.acked)
		assert.Equal(t, []string{"booking.created:1"}, log.seen)
	})

	t.Run("malformed is dropped", func(t *testing.T) {
		ack, log := &ackRecorder{}, &fakeLog{}
		NewWorker(log, observability.NopLogger()).Handle(context.Background(), delivery(t, ack, []byte("{")))
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
		assert.Empty(t, log.seen)
	})

	t.Run("store failure requeues", func(t *testing.T) {
		ack, log := &ackRecorder{}, &fakeLog{err: errors.New("mongo down")}
		NewWorker(log, observability.NopLogger()).Handle(context.Background(), delivery(t, ack, body))
		assert.Equal(t, 1, ack.nacked)
		assert.True(t, ack.requeue)
	})
}
