package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	Get(ctx context.Context, code string) (*domain.Booking, error)
	Confirm(ctx context.Context, code, eventID string) error
	UpdateStart(ctx context.Context, code string, start time.Time) error
	Delete(ctx context.Context, code string) error
	ListStaleRequested(ctx context.Context, before time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db      DB
	timeout time.Duration
}

func NewBookingRepository(db DB, timeout time.Duration) *PGBookingRepository {
	return &PGBookingRepository{db: db, timeout: timeout}
}

const bookingColumns = `code, event_id, status, pkg_key, pkg_minutes, type, address, start_at, client_name, client_email, created_at, updated_at`

func (r *PGBookingRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if booking.Status == "" {
		booking.Status = domain.BookingStatusRequested
	}
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (code, event_id, status, pkg_key, pkg_minutes, type, address, start_at, client_name, client_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		booking.Code, booking.EventID, string(booking.Status), booking.PkgKey, booking.PkgMinutes,
		booking.Type, booking.Address, booking.Start, booking.ClientName, booking.ClientEmail,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateCode
	}
	return err
}

func (r *PGBookingRepository) Get(ctx context.Context, code string) (*domain.Booking, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE code=$1`, code)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Confirm attaches the remote event to a requested booking.
func (r *PGBookingRepository) Confirm(ctx context.Context, code, eventID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET event_id=$2, status=$3, updated_at=now() WHERE code=$1 AND status=$4`,
		code, eventID, string(domain.BookingStatusConfirmed), string(domain.BookingStatusRequested))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) UpdateStart(ctx context.Context, code string, start time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET start_at=$2, status=$3, updated_at=now() WHERE code=$1 AND status IN ($4, $3)`,
		code, start, string(domain.BookingStatusRescheduled), string(domain.BookingStatusConfirmed))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) Delete(ctx context.Context, code string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE code=$1`, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) ListStaleRequested(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status=$1 AND created_at < $2 ORDER BY created_at`,
		string(domain.BookingStatusRequested), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, *b)
	}
	return stale, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	if err := row.Scan(&b.Code, &b.EventID, &status, &b.PkgKey, &b.PkgMinutes, &b.Type, &b.Address,
		&b.Start, &b.ClientName, &b.ClientEmail, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
