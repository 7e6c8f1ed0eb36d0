package crdb

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/exaring/otelpgx"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/domain"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

type Repository struct {
	pool *pgxpool.Pool
}

// NewPool connects to the cluster at dsn with query tracing enabled.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse CRDB_DSN")
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect to crdb")
	}
	return pool, nil
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx runs fn in a SERIALIZABLE transaction and commits when fn succeeds.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(start).Seconds()) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return mapErr(err)
	}

	if err := fn(tx); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

// mapErr attaches the domain sentinel matching a Postgres error code while
// keeping the driver message.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Mark(err, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure:
		return errors.Mark(err, domain.ErrSerializationFailure)
	case pgerrcode.UniqueViolation:
		return errors.Mark(err, domain.ErrConflict)
	case pgerrcode.ForeignKeyViolation:
		return errors.Mark(err, domain.ErrNotFound)
	}
	return err
}

func (r *Repository) InTx(ctx context.Context, fn func(tx booking.LedgerTx) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

func (r *Repository) SeatStates(ctx context.Context, showing domain.Showing) (domain.SeatStates, error) {
	row := r.pool.QueryRow(ctx, selectLedgerSQL, showing.FilmID, showing.Date, showing.Time)
	return scanLedger(row, showing)
}

const bookingColumns = `id, username, film_id, show_date, show_time, seats, created_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b     domain.Booking
		seats string
	)
	err := row.Scan(&b.ID, &b.Username, &b.Showing.FilmID, &b.Showing.Date, &b.Showing.Time, &seats, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Showing.Date = domain.DateOf(b.Showing.Date)
	b.Seats = domain.ParseSeatString(seats)
	return b, nil
}

func (r *Repository) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return domain.Booking{}, errors.Wrapf(mapErr(err), "booking %s", id)
	}
	return b, nil
}

func (r *Repository) BookingsByUser(ctx context.Context, username string) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE username = $1
		ORDER BY created_at ASC, id ASC
	`, username)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// seatColumnList is the quoted a1..e5 column list in row-major order.
var seatColumnList = func() string {
	cols := make([]string, 0, domain.SeatCount)
	for _, seat := range domain.AllSeats() {
		cols = append(cols, pgx.Identifier{seat.Column()}.Sanitize())
	}
	return strings.Join(cols, ", ")
}()

var selectLedgerSQL = `SELECT ` + seatColumnList + `
	FROM seat_ledger WHERE film_id = $1 AND show_date = $2 AND show_time = $3`

func scanLedger(row pgx.Row, showing domain.Showing) (domain.SeatStates, error) {
	raw := make([]string, domain.SeatCount)
	dest := make([]any, domain.SeatCount)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return domain.SeatStates{}, errors.Wrapf(mapErr(err), "seat ledger row %s", showing.Key())
	}

	var states domain.SeatStates
	for i, v := range raw {
		st, err := domain.ParseSeatState(v)
		if err != nil {
			return domain.SeatStates{}, errors.Wrapf(err, "seat %s of showing %s", domain.AllSeats()[i], showing.Key())
		}
		states[i] = st
	}
	return states, nil
}

var _ booking.Store = (*Repository)(nil)
