package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// EngineerRepository provides engineer lookups for scheduling and routing.
type EngineerRepository interface {
	Upsert(ctx context.Context, engineer *domain.Engineer) error
	GetByID(ctx context.Context, id string) (*domain.Engineer, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Engineer, error)
	List(ctx context.Context) ([]domain.Engineer, error)
}

type engineerRepository struct {
	pool *pgxpool.Pool
}

// NewEngineerRepository creates repository.
func NewEngineerRepository(pool *pgxpool.Pool) EngineerRepository {
	return &engineerRepository{pool: pool}
}

func (r *engineerRepository) Upsert(ctx context.Context, engineer *domain.Engineer) error {
	const query = `
        INSERT INTO engineers (id, name, specialization, working_hours, holidays)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, specialization=EXCLUDED.specialization,
            working_hours=EXCLUDED.working_hours, holidays=EXCLUDED.holidays, updated_at=NOW()
        RETURNING created_at, updated_at`
	holidays := engineer.Holidays
	if holidays == nil {
		holidays = []string{}
	}
	return querier(ctx, r.pool).QueryRow(ctx, query,
		engineer.ID,
		engineer.Name,
		engineer.Specialization,
		engineer.WorkingHours,
		holidays,
	).Scan(&engineer.CreatedAt, &engineer.UpdatedAt)
}

const engineerColumns = `id, name, specialization, COALESCE(working_hours, '[]'::jsonb), COALESCE(holidays, '{}'), created_at, updated_at`

func (r *engineerRepository) GetByID(ctx context.Context, id string) (*domain.Engineer, error) {
	query := `SELECT ` + engineerColumns + ` FROM engineers WHERE id=$1`
	var engineer domain.Engineer
	if err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&engineer.ID,
		&engineer.Name,
		&engineer.Specialization,
		&engineer.WorkingHours,
		&engineer.Holidays,
		&engineer.CreatedAt,
		&engineer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &engineer, nil
}

func (r *engineerRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Engineer, error) {
	query := `SELECT ` + engineerColumns + ` FROM engineers WHERE id = ANY($1) ORDER BY id`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return scanEngineers(rows)
}

func (r *engineerRepository) List(ctx context.Context) ([]domain.Engineer, error) {
	query := `SELECT ` + engineerColumns + ` FROM engineers ORDER BY id`
	rows, err := querier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanEngineers(rows)
}

func scanEngineers(rows pgx.Rows) ([]domain.Engineer, error) {
	defer rows.Close()
	var result []domain.Engineer
	for rows.Next() {
		var engineer domain.Engineer
		if err := rows.Scan(
			&engineer.ID,
			&engineer.Name,
			&engineer.Specialization,
			&engineer.WorkingHours,
			&engineer.Holidays,
			&engineer.CreatedAt,
			&engineer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, engineer)
	}
	return result, rows.Err()
}
