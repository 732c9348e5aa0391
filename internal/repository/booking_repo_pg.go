package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransitionUpdate carries one status transition. Optional fields are only
// written when set, and the whole update plus its activity-log entry land in
// a single transaction. When ExpectedVersion is non-nil the write is
// conditional on the booking still carrying that version.
type TransitionUpdate struct {
	BookingID       int64
	Status          domain.BookingStatus
	AssignedGuideID *int64
	CheckInTime     *time.Time
	CheckInBy       string
	CheckOutTime    *time.Time
	CheckOutBy      string
	VisitorRating   *int
	ExpectedVersion *int64
	Actor           string
	Description     string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	CountActiveForGuide(ctx context.Context, guideID int64, from, to time.Time) (int, error)
	ApplyTransition(ctx context.Context, update TransitionUpdate) (*domain.Booking, error)
	ListDueReminder(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error)
	ListActivity(ctx context.Context, bookingID int64) ([]domain.ActivityEntry, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, reference, visitor_name, visitor_email, visit_date, visit_time, selected_zones, status, payment_status, assigned_guide_id, total_amount_cents, check_in_time, check_in_by, check_out_time, check_out_by, visitor_rating, version, reminder_sent_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Reference, &b.VisitorName, &b.VisitorEmail, &b.VisitDate, &b.VisitTime, &b.SelectedZones, &b.Status, &b.PaymentStatus, &b.AssignedGuideID, &b.TotalAmountCents, &b.CheckInTime, &b.CheckInBy, &b.CheckOutTime, &b.CheckOutBy, &b.VisitorRating, &b.Version, &b.ReminderSentAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	booking.Status = domain.BookingStatusPending
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = domain.PaymentStatusPending
	}
	return r.db.QueryRow(ctx, `INSERT INTO bookings (reference, visitor_name, visitor_email, visit_date, visit_time, selected_zones, status, payment_status, total_amount_cents, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING id, version, created_at, updated_at`,
		booking.Reference, booking.VisitorName, booking.VisitorEmail, booking.VisitDate, booking.VisitTime, booking.SelectedZones, booking.Status, booking.PaymentStatus, booking.TotalAmountCents).
		Scan(&booking.ID, &booking.Version, &booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) CountActiveForGuide(ctx context.Context, guideID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE assigned_guide_id=$1 AND visit_date >= $2 AND visit_date <= $3 AND status <> $4`,
		guideID, from, to, domain.BookingStatusCancelled).Scan(&count)
	return count, err
}

// ApplyTransition performs the conditional write. Zero rows matched means
// either the booking is gone (ErrNotFound) or the version moved underneath
// the caller (ErrVersionConflict); the two are distinguished so callers can
// re-read and retry conflicts.
func (r *PGBookingRepository) ApplyTransition(ctx context.Context, update TransitionUpdate) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var oldStatus domain.BookingStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, update.BookingID).Scan(&oldStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	row := tx.QueryRow(ctx, `UPDATE bookings SET
			status=$2,
			assigned_guide_id = COALESCE($3, assigned_guide_id),
			check_in_time = COALESCE($4, check_in_time),
			check_in_by = CASE WHEN $5 <> '' THEN $5 ELSE check_in_by END,
			check_out_time = COALESCE($6, check_out_time),
			check_out_by = CASE WHEN $7 <> '' THEN $7 ELSE check_out_by END,
			visitor_rating = COALESCE($8, visitor_rating),
			version = version + 1,
			updated_at = now()
		WHERE id=$1 AND ($9::bigint IS NULL OR version=$9)
		RETURNING `+bookingColumns,
		update.BookingID, update.Status, update.AssignedGuideID, update.CheckInTime, update.CheckInBy, update.CheckOutTime, update.CheckOutBy, update.VisitorRating, update.ExpectedVersion)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionConflict
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO booking_activity (booking_id, old_status, new_status, actor, description)
		VALUES ($1, $2, $3, $4, $5)`,
		update.BookingID, oldStatus, update.Status, update.Actor, update.Description); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ListDueReminder(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE reminder_sent_at IS NULL
		AND status NOT IN ($1, $2)
		AND visit_date + visit_time::time >= $3
		AND visit_date + visit_time::time <= $4`,
		domain.BookingStatusCancelled, domain.BookingStatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *b)
	}
	return due, rows.Err()
}

// MarkReminderSent claims the reminder slot for a booking. The IS NULL guard
// makes the claim exclusive, so at most one reminder goes out per booking.
func (r *PGBookingRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET reminder_sent_at=$2, updated_at=now() WHERE id=$1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) ListActivity(ctx context.Context, bookingID int64) ([]domain.ActivityEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, old_status, new_status, actor, description, created_at FROM booking_activity WHERE booking_id=$1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.OldStatus, &e.NewStatus, &e.Actor, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
