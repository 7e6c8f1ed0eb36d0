package crdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
)

// ledgerTx is the booking.LedgerTx view of one open transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) LockSeats(ctx context.Context, showing domain.Showing) (domain.SeatStates, error) {
	row := t.tx.QueryRow(ctx, selectLedgerSQL+` FOR UPDATE`, showing.FilmID, showing.Date, showing.Time)
	return scanLedger(row, showing)
}

// SetSeats issues one conditional UPDATE so the state check and the write
// cannot be separated.
func (t *ledgerTx) SetSeats(ctx context.Context, showing domain.Showing, seats []domain.SeatLabel, from, to domain.SeatState) (bool, error) {
	if err := domain.ValidateSelection(seats); err != nil {
		return false, err
	}

	sets := make([]string, len(seats))
	conds := make([]string, len(seats))
	for i, seat := range seats {
		col := pgx.Identifier{seat.Column()}.Sanitize()
		sets[i] = col + " = $4"
		conds[i] = col + " = $5"
	}
	sql := fmt.Sprintf(
		`UPDATE seat_ledger SET %s WHERE film_id = $1 AND show_date = $2 AND show_time = $3 AND %s`,
		strings.Join(sets, ", "), strings.Join(conds, " AND "),
	)

	tag, err := t.tx.Exec(ctx, sql, showing.FilmID, showing.Date, showing.Time, to.String(), from.String())
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *ledgerTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, username, film_id, show_date, show_time, seats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.Username, b.Showing.FilmID, b.Showing.Date, b.Showing.Time, b.SeatString(), b.CreatedAt)
	return mapErr(err)
}

func (t *ledgerTx) DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *ledgerTx) Enqueue(ctx context.Context, eventType string, event domain.BookingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal booking event")
	}
	return insertOutbox(ctx, t.tx, OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   event.BookingID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     eventType + ":" + event.BookingID.String(),
	})
}
