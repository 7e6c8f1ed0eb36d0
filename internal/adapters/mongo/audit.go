package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	Username  string    `bson:"username"`
	BookingID string    `bson:"booking_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

// EnsureIndexes creates the lookup indexes used by support tooling.
func (a *AuditLogger) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	})
	return err
}

// LogEvent stores one entry under id. Writing the same id twice keeps the
// first entry, so redelivered messages are harmless.
func (a *AuditLogger) LogEvent(ctx context.Context, id, action, username, bookingID string, at time.Time, data map[string]interface{}) error {
	log := AuditLog{
		ID:        id,
		Action:    action,
		Username:  username,
		BookingID: bookingID,
		Timestamp: at,
		Data:      bson.M(data),
	}
	_, err := a.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": log},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit log")
		return errors.Wrap(err, "insert audit log")
	}
	return nil
}

// Record implements booking.Auditor for entries written by the booking service.
func (a *AuditLogger) Record(ctx context.Context, e booking.AuditEntry) error {
	data := map[string]interface{}{
		"film_id": e.Showing.FilmID,
		"date":    e.Showing.DateString(),
		"time":    e.Showing.Time,
		"seats":   seatStrings(e.Seats),
		"source":  "service",
	}
	if e.Error != "" {
		data["error"] = e.Error
	}
	return a.LogEvent(ctx, uuid.NewString(), e.Action, e.Username, e.BookingID.String(), e.At, data)
}

// LogBookingEvent stores an event relayed through the broker, keyed by its
// message id.
func (a *AuditLogger) LogBookingEvent(ctx context.Context, messageID, eventType string, ev domain.BookingEvent) error {
	data := map[string]interface{}{
		"film_id": ev.FilmID,
		"date":    ev.Date,
		"time":    ev.Time,
		"seats":   ev.Seats,
		"source":  "broker",
	}
	return a.LogEvent(ctx, messageID, eventType, ev.Username, ev.BookingID.String(), ev.OccurredAt, data)
}

func seatStrings(seats []domain.SeatLabel) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = string(s)
	}
	return out
}

var _ booking.Auditor = (*AuditLogger)(nil)
