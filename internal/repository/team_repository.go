package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// TeamRepository manages persistence for teams.
type TeamRepository interface {
	Upsert(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

func (r *teamRepository) Upsert(ctx context.Context, team *domain.Team) error {
	const query = `
        INSERT INTO teams (id, name, assignment_mode, member_ids)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, assignment_mode=EXCLUDED.assignment_mode,
            member_ids=EXCLUDED.member_ids, updated_at=NOW()`
	members := team.MemberIDs
	if members == nil {
		members = []string{}
	}
	_, err := querier(ctx, r.pool).Exec(ctx, query, team.ID, team.Name, team.AssignmentMode, members)
	return err
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	const query = `
        SELECT id, name, assignment_mode, COALESCE(member_ids, '{}')
        FROM teams WHERE id=$1`
	var team domain.Team
	if err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&team.AssignmentMode,
		&team.MemberIDs,
	); err != nil {
		return nil, err
	}
	return &team, nil
}
