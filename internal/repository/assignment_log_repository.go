package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentLogRepository keeps the round-robin cursor: when each team member
// last received work from that team.
type AssignmentLogRepository interface {
	LastAssigned(ctx context.Context, teamID string) (map[string]time.Time, error)
	Touch(ctx context.Context, teamID, engineerID string, at time.Time) error
}

type assignmentLogRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentLogRepository builds repository.
func NewAssignmentLogRepository(pool *pgxpool.Pool) AssignmentLogRepository {
	return &assignmentLogRepository{pool: pool}
}

func (r *assignmentLogRepository) LastAssigned(ctx context.Context, teamID string) (map[string]time.Time, error) {
	const query = `SELECT engineer_id, last_assigned_at FROM team_assignment_log WHERE team_id=$1`
	rows, err := querier(ctx, r.pool).Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var engineerID string
		var at time.Time
		if err := rows.Scan(&engineerID, &at); err != nil {
			return nil, err
		}
		result[engineerID] = at
	}
	return result, rows.Err()
}

func (r *assignmentLogRepository) Touch(ctx context.Context, teamID, engineerID string, at time.Time) error {
	const query = `
        INSERT INTO team_assignment_log (team_id, engineer_id, last_assigned_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (team_id, engineer_id) DO UPDATE SET last_assigned_at=EXCLUDED.last_assigned_at`
	_, err := querier(ctx, r.pool).Exec(ctx, query, teamID, engineerID, at)
	return err
}
