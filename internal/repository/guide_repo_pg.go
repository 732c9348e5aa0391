package repository

import (
	"context"
	"errors"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GuideRepository interface {
	ListActive(ctx context.Context) ([]domain.Guide, error)
	GetByID(ctx context.Context, id int64) (*domain.Guide, error)
	IncrementTourStats(ctx context.Context, id int64, earningsCents int64) error
	ApplyRating(ctx context.Context, id int64, rating int) error
	Deactivate(ctx context.Context, id int64) error
}

type PGGuideRepository struct {
	db *pgxpool.Pool
}

func NewGuideRepository(db *pgxpool.Pool) GuideRepository {
	return &PGGuideRepository{db: db}
}

const guideColumns = `id, name, email, assigned_zones, available_days, rating, total_ratings, total_tours, completed_tours, total_earnings_cents, is_active, deleted_at, created_at, updated_at`

func scanGuide(row pgx.Row) (*domain.Guide, error) {
	var g domain.Guide
	var days []int32
	if err := row.Scan(&g.ID, &g.Name, &g.Email, &g.AssignedZones, &days, &g.Rating, &g.TotalRatings, &g.TotalTours, &g.CompletedTours, &g.TotalEarningsCents, &g.IsActive, &g.DeletedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.AvailableDays = make([]int, 0, len(days))
	for _, d := range days {
		g.AvailableDays = append(g.AvailableDays, int(d))
	}
	return &g, nil
}

// ListActive returns every guide still eligible for assignment. Soft-deleted
// guides stay in the table for historical bookings but never show up here.
func (r *PGGuideRepository) ListActive(ctx context.Context) ([]domain.Guide, error) {
	rows, err := r.db.Query(ctx, `SELECT `+guideColumns+` FROM guides WHERE is_active AND deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guides := make([]domain.Guide, 0)
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, *g)
	}
	return guides, rows.Err()
}

func (r *PGGuideRepository) GetByID(ctx context.Context, id int64) (*domain.Guide, error) {
	row := r.db.QueryRow(ctx, `SELECT `+guideColumns+` FROM guides WHERE id=$1`, id)
	g, err := scanGuide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *PGGuideRepository) IncrementTourStats(ctx context.Context, id int64, earningsCents int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE guides SET
			total_tours = total_tours + 1,
			completed_tours = completed_tours + 1,
			total_earnings_cents = total_earnings_cents + $2,
			updated_at = now()
		WHERE id=$1`, id, earningsCents)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyRating folds one visitor rating into the running average, rounding to
// the nearest integer at each step. The single statement keeps concurrent
// ratings serialized on the row.
func (r *PGGuideRepository) ApplyRating(ctx context.Context, id int64, rating int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE guides SET
			rating = ROUND((rating * total_ratings + $2)::numeric / (total_ratings + 1)),
			total_ratings = total_ratings + 1,
			updated_at = now()
		WHERE id=$1`, id, rating)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGGuideRepository) Deactivate(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE guides SET is_active=false, deleted_at=now(), updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ GuideRepository = (*PGGuideRepository)(nil)
