package domain

import "time"

// SLAMetric selects which SLA clock is evaluated.
type SLAMetric string

const (
	SLAMetricResponse   SLAMetric = "response"
	SLAMetricResolution SLAMetric = "resolution"
)

// SLAPolicy sets response and resolution targets for a priority.
type SLAPolicy struct {
	ID                      string
	Name                    string
	Priority                TicketPriority
	ResponseTimeHours       float64
	ResolutionTimeHours     float64
	ResponseBusinessHours   bool
	ResolutionBusinessHours bool
	BusinessHoursStart      ClockTime
	BusinessHoursEnd        ClockTime
	BusinessDays            []time.Weekday
	EscalationAfterHours    float64
	Timezone                string
}

// IsBusinessDay reports whether the weekday counts toward business time.
func (p *SLAPolicy) IsBusinessDay(day time.Weekday) bool {
	for _, d := range p.BusinessDays {
		if d == day {
			return true
		}
	}
	return false
}

// UsesBusinessHours returns the metric's business-hours flag.
func (p *SLAPolicy) UsesBusinessHours(metric SLAMetric) bool {
	if metric == SLAMetricResponse {
		return p.ResponseBusinessHours
	}
	return p.ResolutionBusinessHours
}

// Target returns the metric's allowed duration.
func (p *SLAPolicy) Target(metric SLAMetric) time.Duration {
	hours := p.ResolutionTimeHours
	if metric == SLAMetricResponse {
		hours = p.ResponseTimeHours
	}
	return HoursToDuration(hours)
}

// HoursToDuration converts fractional hours.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// SLAClock is one metric's evaluation.
type SLAClock struct {
	Metric    SLAMetric     `json:"metric"`
	Target    time.Duration `json:"-"`
	Elapsed   time.Duration `json:"-"`
	Breached  bool          `json:"breached"`
	Satisfied bool          `json:"satisfied"`
}

// SLAStatus is the read model of a ticket against its policy.
type SLAStatus struct {
	TicketID       string    `json:"ticket_id"`
	PolicyID       string    `json:"policy_id"`
	PolicyName     string    `json:"policy_name"`
	Response       SLAClock  `json:"response"`
	Resolution     SLAClock  `json:"resolution"`
	ShouldEscalate bool      `json:"should_escalate"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// Location resolves the policy timezone, defaulting to UTC.
func (p *SLAPolicy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
