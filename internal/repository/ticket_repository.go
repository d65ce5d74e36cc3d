package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// TicketNumberFormat renders the sequence value as a ticket number.
const TicketNumberFormat = "TCK-%06d"

// TicketRepository encapsulates ticket persistence. Timeline entries live in
// TimelineRepository.
type TicketRepository interface {
	NextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the ticket when ticket.Version matches the stored version and
	// bumps ticket.Version.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListOpen returns open tickets, oldest first.
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	OpenCountByStage(ctx context.Context, workflowID string) (map[string]int, error)
	OpenCountByAssignee(ctx context.Context, engineerIDs []string) (map[string]int, error)
	LatestByAssignee(ctx context.Context, engineerIDs []string) (map[string]domain.LastTicket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, workflow_id, current_stage_id, stage_entered_at, priority, is_open,
               company_id, company_name, subject, description, assigned_team_id, assigned_to_id, assigned_to_name,
               scheduled_at, scheduled_end_at, schedule_notes, diagnosis, COALESCE(parts_required, '[]'::jsonb),
               quotation_notes, resolution_notes, COALESCE(tags, '{}'), COALESCE(form_values, '{}'::jsonb),
               COALESCE(tasks, '[]'::jsonb), first_responded_at, resolved_at, closed_at, version, created_at, updated_at`

func (r *ticketRepository) NextNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := querier(ctx, r.pool).QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf(TicketNumberFormat, seq), nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, workflow_id, current_stage_id, stage_entered_at, priority, is_open,
            company_id, company_name, subject, description, assigned_team_id, assigned_to_id, assigned_to_name,
            tags, form_values, tasks, parts_required, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
        RETURNING id, version`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.WorkflowID,
		ticket.CurrentStageID,
		ticket.StageEnteredAt,
		ticket.Priority,
		ticket.IsOpen,
		ticket.CompanyID,
		ticket.CompanyName,
		ticket.Subject,
		ticket.Description,
		ticket.AssignedTeamID,
		ticket.AssignedToID,
		ticket.AssignedToName,
		ticket.Tags,
		ticket.FormValues,
		ticket.Tasks,
		ticket.PartsRequired,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.Version)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET current_stage_id=$1, stage_entered_at=$2, priority=$3, is_open=$4,
            assigned_team_id=$5, assigned_to_id=$6, assigned_to_name=$7, scheduled_at=$8, scheduled_end_at=$9,
            schedule_notes=$10, diagnosis=$11, parts_required=$12, quotation_notes=$13, resolution_notes=$14,
            tags=$15, tasks=$16, first_responded_at=$17, resolved_at=$18, closed_at=$19,
            updated_at=$20, version=version+1
        WHERE id=$21 AND version=$22
        RETURNING version`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		ticket.CurrentStageID,
		ticket.StageEnteredAt,
		ticket.Priority,
		ticket.IsOpen,
		ticket.AssignedTeamID,
		ticket.AssignedToID,
		ticket.AssignedToName,
		ticket.ScheduledAt,
		ticket.ScheduledEndAt,
		ticket.ScheduleNotes,
		ticket.Diagnosis,
		ticket.PartsRequired,
		ticket.QuotationNotes,
		ticket.ResolutionNotes,
		ticket.Tags,
		ticket.Tasks,
		ticket.FirstRespondedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version)
	if err == pgx.ErrNoRows {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE is_open ORDER BY created_at`
	rows, err := querier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.WorkflowID,
		&ticket.CurrentStageID,
		&ticket.StageEnteredAt,
		&ticket.Priority,
		&ticket.IsOpen,
		&ticket.CompanyID,
		&ticket.CompanyName,
		&ticket.Subject,
		&ticket.Description,
		&ticket.AssignedTeamID,
		&ticket.AssignedToID,
		&ticket.AssignedToName,
		&ticket.ScheduledAt,
		&ticket.ScheduledEndAt,
		&ticket.ScheduleNotes,
		&ticket.Diagnosis,
		&ticket.PartsRequired,
		&ticket.QuotationNotes,
		&ticket.ResolutionNotes,
		&ticket.Tags,
		&ticket.FormValues,
		&ticket.Tasks,
		&ticket.FirstRespondedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) OpenCountByStage(ctx context.Context, workflowID string) (map[string]int, error) {
	const query = `
        SELECT current_stage_id, COUNT(*) FROM tickets
        WHERE workflow_id=$1 AND is_open GROUP BY current_stage_id`
	return r.countBy(ctx, query, workflowID)
}

func (r *ticketRepository) OpenCountByAssignee(ctx context.Context, engineerIDs []string) (map[string]int, error) {
	const query = `
        SELECT assigned_to_id, COUNT(*) FROM tickets
        WHERE is_open AND assigned_to_id = ANY($1) GROUP BY assigned_to_id`
	return r.countBy(ctx, query, engineerIDs)
}

func (r *ticketRepository) countBy(ctx context.Context, query string, arg any) (map[string]int, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) LatestByAssignee(ctx context.Context, engineerIDs []string) (map[string]domain.LastTicket, error) {
	const query = `
        SELECT DISTINCT ON (assigned_to_id) assigned_to_id, id, ticket_number, company_name, updated_at
        FROM tickets WHERE assigned_to_id = ANY($1)
        ORDER BY assigned_to_id, updated_at DESC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, engineerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.LastTicket)
	for rows.Next() {
		var engineerID string
		var last domain.LastTicket
		if err := rows.Scan(&engineerID, &last.TicketID, &last.TicketNumber, &last.CompanyName, &last.UpdatedAt); err != nil {
			return nil, err
		}
		result[engineerID] = last
	}
	return result, rows.Err()
}
