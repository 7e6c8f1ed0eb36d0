package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

// Sink is the broker side of the relay.
type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	source     Source
	sink       Sink
	logger     observability.Logger
	interval   time.Duration
	batch      int
	maxRetries int
	backoff    time.Duration
}

func NewPublisher(source Source, sink Sink, logger observability.Logger, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{
		source:     source,
		sink:       sink,
		logger:     logger,
		interval:   interval,
		batch:      10,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// WithBackoff sets the base delay between publish retries. It doubles per attempt.
func (p *Publisher) WithBackoff(d time.Duration) *Publisher {
	p.backoff = d
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.WithError(err).Error("outbox relay failed")
			}
		}
	}
}

// RunOnce relays every pending message, batch by batch, and returns how many
// went out.
func (p *Publisher) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := p.source.Drain(ctx, p.batch, p.publish)
		total += n
		if err != nil {
			return total, err
		}
		if n < p.batch {
			return total, nil
		}
	}
}

func (p *Publisher) publish(ctx context.Context, m Message) error {
	msg := amqp.Publishing{
		MessageId:    m.DedupeKey,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.CreatedAt,
		Type:         m.EventType,
		Body:         m.Payload,
	}

	var err error
	for i := 0; i < p.maxRetries; i++ {
		if err = p.sink.Publish(ctx, m.EventType, msg); err == nil {
			observability.OutboxLag.Set(time.Since(m.CreatedAt).Seconds())
			p.logger.WithFields(map[string]interface{}{
				"event_type": m.EventType,
				"dedupe_key": m.DedupeKey,
			}).Debug("outbox message published")
			return nil
		}
		observability.RabbitPublishRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * p.backoff):
		}
	}
	return errors.Wrapf(err, "publish %s after %d attempts", m.DedupeKey, p.maxRetries)
}
