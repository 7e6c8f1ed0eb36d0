package mongo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/mongo"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestAuditLogger(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	db := client.Database("cinema_test")
	audit := mongoadapter.NewAuditLogger(db, observability.NopLogger())
	require.NoError(t, audit.EnsureIndexes(ctx))

	showing := domain.NewShowing(1, time.Now().AddDate(0, 0, 1), "19:30")
	id := uuid.New()
	require.NoError(t, audit.Record(ctx, booking.AuditEntry{
		Action:    domain.EventBookingCreated,
		Username:  "alice",
		BookingID: id,
		Showing:   showing,
		Seats:     []domain.SeatLabel{"A1"},
		At:        time.Now(),
	}))

	ev := domain.BookingEvent{BookingID: id, Username: "alice", Seats: []string{"A1"}, OccurredAt: time.Now()}
	msgID := domain.EventBookingCreated + ":" + id.String()
	require.NoError(t, audit.LogBookingEvent(ctx, msgID, domain.EventBookingCreated, ev))
	require.NoError(t, audit.LogBookingEvent(ctx, msgID, domain.EventBookingCreated, ev))

	coll := db.Collection("audit_logs")
	n, err := coll.CountDocuments(ctx, bson.M{"booking_id": id.String()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var stored mongoadapter.AuditLog
	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": msgID}).Decode(&stored))
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "broker", stored.Data["source"])
}
