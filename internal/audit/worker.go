// Package audit copies booking events from the broker into the audit log.
package audit

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

// Queue and Pattern bind the audit queue to every booking event.
const (
	Queue   = "cinema.audit"
	Pattern = "booking.#"
)

type EventLog interface {
	LogBookingEvent(ctx context.Context, messageID, eventType string, ev domain.BookingEvent) error
}

type Worker struct {
	log    EventLog
	logger observability.Logger
}

func NewWorker(log EventLog, logger observability.Logger) *Worker {
	return &Worker{log: log, logger: logger}
}

// Run handles deliveries until ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("delivery channel closed")
				return
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle acks stored events, drops undecodable ones and requeues the rest.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	log := w.logger.WithFields(map[string]interface{}{
		"message_id":  d.MessageId,
		"routing_key": d.RoutingKey,
	})

	var ev domain.BookingEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.WithError(err).Error("dropping malformed booking event")
		_ = d.Nack(false, false)
		return
	}

	id := d.MessageId
	if id == "" {
		id = d.RoutingKey + ":" + ev.BookingID.String()
	}
	if err := w.log.LogBookingEvent(ctx, id, d.RoutingKey, ev); err != nil {
		log.WithError(err).Warn("audit store failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
	log.Debug("booking event audited")
}
