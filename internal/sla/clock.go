// Package sla measures tickets against SLA policies. Everything here is a pure
// function of its inputs; callers supply "now".
package sla

import (
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// ElapsedBusinessHours returns the time between from and to that counts toward
// metric. With the metric's business-hours flag off this is plain wall-clock
// time; otherwise only the parts of [from, to] inside the business window on
// business days count, evaluated in the policy timezone.
func ElapsedBusinessHours(policy *domain.SLAPolicy, metric domain.SLAMetric, from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}
	if !policy.UsesBusinessHours(metric) {
		return to.Sub(from)
	}
	if policy.BusinessHoursEnd <= policy.BusinessHoursStart {
		return 0
	}

	loc := policy.Location()
	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var total time.Duration
	for day.Before(to) {
		if policy.IsBusinessDay(day.Weekday()) {
			windowStart := policy.BusinessHoursStart.On(day, loc)
			windowEnd := policy.BusinessHoursEnd.On(day, loc)
			total += overlap(from, to, windowStart, windowEnd)
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}
	return total
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// IsBreached reports whether the metric's target has been exceeded since the
// ticket was created. A zero target never breaches.
func IsBreached(policy *domain.SLAPolicy, createdAt, now time.Time, metric domain.SLAMetric) bool {
	target := policy.Target(metric)
	if target <= 0 {
		return false
	}
	return ElapsedBusinessHours(policy, metric, createdAt, now) > target
}

// ShouldEscalate reports whether the ticket has sat in its current stage longer
// than the escalation threshold. Time is counted the way the resolution metric
// counts it. A zero threshold disables escalation.
func ShouldEscalate(policy *domain.SLAPolicy, stageEnteredAt, now time.Time) bool {
	if policy.EscalationAfterHours <= 0 {
		return false
	}
	threshold := domain.HoursToDuration(policy.EscalationAfterHours)
	return ElapsedBusinessHours(policy, domain.SLAMetricResolution, stageEnteredAt, now) > threshold
}

// Evaluate builds the SLA read model of a ticket at now. The response clock stops
// at the first response. The resolution clock stops at resolution, or at closure
// for tickets closed without resolving, which never count as satisfied.
func Evaluate(policy *domain.SLAPolicy, ticket *domain.Ticket, now time.Time) domain.SLAStatus {
	status := domain.SLAStatus{
		TicketID:    ticket.ID,
		PolicyID:    policy.ID,
		PolicyName:  policy.Name,
		EvaluatedAt: now,
	}

	status.Response = clockFor(policy, domain.SLAMetricResponse, ticket.CreatedAt, ticket.FirstRespondedAt, ticket.FirstRespondedAt != nil, now)
	resolutionStop := ticket.ResolvedAt
	if resolutionStop == nil {
		resolutionStop = ticket.ClosedAt
	}
	status.Resolution = clockFor(policy, domain.SLAMetricResolution, ticket.CreatedAt, resolutionStop, ticket.ResolvedAt != nil, now)
	if ticket.IsOpen {
		status.ShouldEscalate = ShouldEscalate(policy, ticket.StageEnteredAt, now)
	}
	return status
}

func clockFor(policy *domain.SLAPolicy, metric domain.SLAMetric, start time.Time, stoppedAt *time.Time, met bool, now time.Time) domain.SLAClock {
	end := now
	if stoppedAt != nil {
		end = *stoppedAt
	}
	clock := domain.SLAClock{
		Metric:    metric,
		Target:    policy.Target(metric),
		Elapsed:   ElapsedBusinessHours(policy, metric, start, end),
		Satisfied: met,
	}
	clock.Breached = IsBreached(policy, start, end, metric)
	if clock.Breached {
		clock.Satisfied = false
	}
	return clock
}
