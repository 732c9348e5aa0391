package repository

import (
	"context"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AvailabilityRepository interface {
	ListByGuide(ctx context.Context, guideID int64) ([]domain.GuideAvailability, error)
	Create(ctx context.Context, record *domain.GuideAvailability) error
	Delete(ctx context.Context, id int64) error
}

type PGAvailabilityRepository struct {
	db *pgxpool.Pool
}

func NewAvailabilityRepository(db *pgxpool.Pool) AvailabilityRepository {
	return &PGAvailabilityRepository{db: db}
}

func (r *PGAvailabilityRepository) ListByGuide(ctx context.Context, guideID int64) ([]domain.GuideAvailability, error) {
	rows, err := r.db.Query(ctx, `SELECT id, guide_id, date, is_recurring, day_of_week, is_available, start_time, end_time, created_at
		FROM guide_availability WHERE guide_id=$1 ORDER BY created_at DESC`, guideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.GuideAvailability, 0)
	for rows.Next() {
		var a domain.GuideAvailability
		var dow *int32
		if err := rows.Scan(&a.ID, &a.GuideID, &a.Date, &a.IsRecurring, &dow, &a.IsAvailable, &a.StartTime, &a.EndTime, &a.CreatedAt); err != nil {
			return nil, err
		}
		if dow != nil {
			d := int(*dow)
			a.DayOfWeek = &d
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

func (r *PGAvailabilityRepository) Create(ctx context.Context, record *domain.GuideAvailability) error {
	return r.db.QueryRow(ctx, `INSERT INTO guide_availability (guide_id, date, is_recurring, day_of_week, is_available, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		record.GuideID, record.Date, record.IsRecurring, record.DayOfWeek, record.IsAvailable, record.StartTime, record.EndTime).
		Scan(&record.ID, &record.CreatedAt)
}

func (r *PGAvailabilityRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM guide_availability WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ AvailabilityRepository = (*PGAvailabilityRepository)(nil)
