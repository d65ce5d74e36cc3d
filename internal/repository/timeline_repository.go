package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// TimelineRepository stores the append-only ticket timeline.
type TimelineRepository interface {
	Append(ctx context.Context, entry *domain.TimelineEntry) error
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TimelineEntry, error)
}

type timelineRepository struct {
	pool *pgxpool.Pool
}

// NewTimelineRepository builds repository.
func NewTimelineRepository(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepository{pool: pool}
}

func (r *timelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	const query = `
        INSERT INTO ticket_timeline (ticket_id, entry_type, description, user_name, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.Type,
		entry.Description,
		entry.UserName,
		entry.IsInternal,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *timelineRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TimelineEntry, error) {
	const query = `
        SELECT id, ticket_id, entry_type, description, user_name, is_internal, created_at
        FROM ticket_timeline
        WHERE ticket_id=$1 AND ($2 OR NOT is_internal)
        ORDER BY seq ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ticketID, includeInternal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Type,
			&entry.Description,
			&entry.UserName,
			&entry.IsInternal,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
