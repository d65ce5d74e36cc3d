package domain

import "time"

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Diagnosis is the latest technical assessment recorded on a ticket.
type Diagnosis struct {
	Findings       string    `json:"findings"`
	Recommendation string    `json:"recommendation,omitempty"`
	DiagnosedBy    string    `json:"diagnosed_by"`
	DiagnosedAt    time.Time `json:"diagnosed_at"`
}

// Part is a line of the parts list required to resolve a ticket.
type Part struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// TaskStatus tracks checklist items on a ticket.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
)

// Task is a checklist item orthogonal to the workflow.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Ticket is the aggregate driven through a workflow.
type Ticket struct {
	ID               string
	TicketNumber     string
	WorkflowID       string
	CurrentStageID   string
	StageEnteredAt   time.Time
	Priority         TicketPriority
	IsOpen           bool
	CompanyID        string
	CompanyName      string
	Subject          string
	Description      string
	AssignedTeamID   *string
	AssignedToID     *string
	AssignedToName   string
	ScheduledAt      *time.Time
	ScheduledEndAt   *time.Time
	ScheduleNotes    string
	Diagnosis        *Diagnosis
	PartsRequired    []Part
	QuotationNotes   string
	ResolutionNotes  string
	Tags             []string
	FormValues       map[string]any
	Tasks            []Task
	Timeline         []TimelineEntry
	FirstRespondedAt *time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Task returns the task with the given id.
func (t *Ticket) Task(id string) (*Task, bool) {
	for i := range t.Tasks {
		if t.Tasks[i].ID == id {
			return &t.Tasks[i], true
		}
	}
	return nil, false
}

// LastTicket is the continuity hint shown next to an engineer.
type LastTicket struct {
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	CompanyName  string    `json:"company_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}
