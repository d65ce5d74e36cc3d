package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// VisitBookingRepository stores engineer visit reservations.
type VisitBookingRepository interface {
	// LockDay serializes reservations for one engineer and date until the
	// surrounding transaction ends.
	LockDay(ctx context.Context, engineerID, date string) error
	ListByEngineerDate(ctx context.Context, engineerID, date string) ([]domain.VisitBooking, error)
	Create(ctx context.Context, booking *domain.VisitBooking) error
	DeleteByTicket(ctx context.Context, ticketID string) ([]domain.VisitBooking, error)
	Delete(ctx context.Context, id string) error
}

type visitBookingRepository struct {
	pool *pgxpool.Pool
}

// NewVisitBookingRepository builds repository.
func NewVisitBookingRepository(pool *pgxpool.Pool) VisitBookingRepository {
	return &visitBookingRepository{pool: pool}
}

func (r *visitBookingRepository) LockDay(ctx context.Context, engineerID, date string) error {
	if !InTx(ctx) {
		return errors.New("visit booking day lock requires a transaction")
	}
	_, err := querier(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, engineerID+"|"+date)
	return err
}

func (r *visitBookingRepository) ListByEngineerDate(ctx context.Context, engineerID, date string) ([]domain.VisitBooking, error) {
	const query = `
        SELECT id, engineer_id, to_char(visit_date, 'YYYY-MM-DD'), start_time, end_time, ticket_id, ticket_number,
               company_name, created_at
        FROM visit_bookings
        WHERE engineer_id=$1 AND visit_date=$2::date
        ORDER BY start_time`
	rows, err := querier(ctx, r.pool).Query(ctx, query, engineerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VisitBooking
	for rows.Next() {
		var booking domain.VisitBooking
		if err := rows.Scan(
			&booking.ID,
			&booking.EngineerID,
			&booking.Date,
			&booking.StartTime,
			&booking.EndTime,
			&booking.TicketID,
			&booking.TicketNumber,
			&booking.CompanyName,
			&booking.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, booking)
	}
	return result, rows.Err()
}

func (r *visitBookingRepository) Create(ctx context.Context, booking *domain.VisitBooking) error {
	const query = `
        INSERT INTO visit_bookings (engineer_id, visit_date, start_time, end_time, ticket_id, ticket_number, company_name, created_at)
        VALUES ($1,$2::date,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		booking.EngineerID,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		booking.TicketID,
		booking.TicketNumber,
		booking.CompanyName,
		booking.CreatedAt,
	).Scan(&booking.ID)
	if isPgError(err, pgExclusionViolation) {
		return apperrors.NewSlotConflict("slot was taken by a concurrent booking", map[string]any{
			"engineer_id": booking.EngineerID,
			"start_time":  booking.StartTime,
		})
	}
	return err
}

func (r *visitBookingRepository) DeleteByTicket(ctx context.Context, ticketID string) ([]domain.VisitBooking, error) {
	const query = `
        DELETE FROM visit_bookings WHERE ticket_id=$1
        RETURNING id, engineer_id, to_char(visit_date, 'YYYY-MM-DD'), start_time, end_time, ticket_id, ticket_number,
                  company_name, created_at`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var released []domain.VisitBooking
	for rows.Next() {
		var booking domain.VisitBooking
		if err := rows.Scan(
			&booking.ID,
			&booking.EngineerID,
			&booking.Date,
			&booking.StartTime,
			&booking.EndTime,
			&booking.TicketID,
			&booking.TicketNumber,
			&booking.CompanyName,
			&booking.CreatedAt,
		); err != nil {
			return nil, err
		}
		released = append(released, booking)
	}
	return released, rows.Err()
}

func (r *visitBookingRepository) Delete(ctx context.Context, id string) error {
	_, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM visit_bookings WHERE id=$1`, id)
	return err
}
