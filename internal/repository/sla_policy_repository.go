package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// SLAPolicyRepository stores one SLA policy per priority.
type SLAPolicyRepository interface {
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
	ForPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (id, name, priority, response_time_hours, resolution_time_hours,
            response_business_hours, resolution_business_hours, business_hours_start, business_hours_end,
            business_days, escalation_after_hours, timezone)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, priority=EXCLUDED.priority,
            response_time_hours=EXCLUDED.response_time_hours, resolution_time_hours=EXCLUDED.resolution_time_hours,
            response_business_hours=EXCLUDED.response_business_hours,
            resolution_business_hours=EXCLUDED.resolution_business_hours,
            business_hours_start=EXCLUDED.business_hours_start, business_hours_end=EXCLUDED.business_hours_end,
            business_days=EXCLUDED.business_days, escalation_after_hours=EXCLUDED.escalation_after_hours,
            timezone=EXCLUDED.timezone`
	days := make([]int32, 0, len(policy.BusinessDays))
	for _, d := range policy.BusinessDays {
		days = append(days, int32(d))
	}
	_, err := querier(ctx, r.pool).Exec(ctx, query,
		policy.ID,
		policy.Name,
		policy.Priority,
		policy.ResponseTimeHours,
		policy.ResolutionTimeHours,
		policy.ResponseBusinessHours,
		policy.ResolutionBusinessHours,
		int32(policy.BusinessHoursStart),
		int32(policy.BusinessHoursEnd),
		days,
		policy.EscalationAfterHours,
		policy.Timezone,
	)
	return err
}

func (r *slaPolicyRepository) ForPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, name, priority, response_time_hours, resolution_time_hours, response_business_hours,
               resolution_business_hours, business_hours_start, business_hours_end, business_days,
               escalation_after_hours, timezone
        FROM sla_policies WHERE priority=$1`
	var (
		policy     domain.SLAPolicy
		start, end int32
		days       []int32
	)
	if err := querier(ctx, r.pool).QueryRow(ctx, query, priority).Scan(
		&policy.ID,
		&policy.Name,
		&policy.Priority,
		&policy.ResponseTimeHours,
		&policy.ResolutionTimeHours,
		&policy.ResponseBusinessHours,
		&policy.ResolutionBusinessHours,
		&start,
		&end,
		&days,
		&policy.EscalationAfterHours,
		&policy.Timezone,
	); err != nil {
		return nil, err
	}
	policy.BusinessHoursStart = domain.ClockTime(start)
	policy.BusinessHoursEnd = domain.ClockTime(end)
	for _, d := range days {
		policy.BusinessDays = append(policy.BusinessDays, time.Weekday(d))
	}
	return &policy, nil
}
