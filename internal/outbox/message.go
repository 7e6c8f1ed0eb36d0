package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one stored event waiting to be relayed to the broker.
type Message struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
	DedupeKey string
	CreatedAt time.Time
}

// Source hands out unpublished messages. publish is called once per message
// in creation order; Drain reports how many were published.
type Source interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, Message) error) (int, error)
}
