package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// WorkflowRepository persists workflow definitions.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.WorkflowDefinition) error
	// Update replaces the definition when wf.Version still matches the stored
	// version, then bumps wf.Version.
	Update(ctx context.Context, wf *domain.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowDefinition, error)
	List(ctx context.Context) ([]domain.WorkflowDefinition, error)
}

type workflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository instantiates repository.
func NewWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{pool: pool}
}

func (r *workflowRepository) Create(ctx context.Context, wf *domain.WorkflowDefinition) error {
	const query = `
        INSERT INTO workflows (id, name, stages)
        VALUES ($1,$2,$3)
        RETURNING version, created_at, updated_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query, wf.ID, wf.Name, wf.Stages).
		Scan(&wf.Version, &wf.CreatedAt, &wf.UpdatedAt)
	if isPgError(err, pgUniqueViolation) {
		return apperrors.NewConflict("workflow already exists", map[string]any{"workflow_id": wf.ID})
	}
	return err
}

func (r *workflowRepository) Update(ctx context.Context, wf *domain.WorkflowDefinition) error {
	const query = `
        UPDATE workflows SET name=$1, stages=$2, version=version+1, updated_at=NOW()
        WHERE id=$3 AND version=$4
        RETURNING version, updated_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query, wf.Name, wf.Stages, wf.ID, wf.Version).
		Scan(&wf.Version, &wf.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NewConflict("workflow was modified concurrently", map[string]any{"workflow_id": wf.ID})
	}
	return err
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	const query = `
        SELECT id, name, version, stages, created_at, updated_at
        FROM workflows WHERE id=$1`
	var wf domain.WorkflowDefinition
	if err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&wf.ID,
		&wf.Name,
		&wf.Version,
		&wf.Stages,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) List(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	const query = `
        SELECT id, name, version, stages, created_at, updated_at
        FROM workflows ORDER BY name`
	rows, err := querier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowDefinition
	for rows.Next() {
		var wf domain.WorkflowDefinition
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Version, &wf.Stages, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}
