package events

import (
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketTransitioned  EventType = "ticket_transitioned"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketTaskCompleted EventType = "ticket_task_completed"
	EventTicketSLAAlert      EventType = "ticket_sla_alert"
)

// AllEventTypes lists every type a subscriber may want to forward.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketTransitioned,
	EventTicketAssigned,
	EventTicketCommentAdded,
	EventTicketTaskCompleted,
	EventTicketSLAAlert,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id"`
	Name string             `json:"name,omitempty"`
}

// ActorFrom converts the acting principal.
func ActorFrom(actor domain.Actor) Actor {
	return Actor{Type: actor.Subject, ID: actor.SubjectID, Name: actor.Name}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	WorkflowID   string                `json:"workflow_id"`
	StageID      string                `json:"stage_id"`
	Priority     domain.TicketPriority `json:"priority"`
	CompanyName  string                `json:"company_name"`
	Subject      string                `json:"subject"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	TicketNumber  string           `json:"ticket_number"`
	TransitionID  string           `json:"transition_id"`
	FromStageID   string           `json:"from_stage_id"`
	ToStageID     string           `json:"to_stage_id"`
	ToStageName   string           `json:"to_stage_name"`
	RequiresInput domain.InputGate `json:"requires_input"`
	IsOpen        bool             `json:"is_open"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber   string  `json:"ticket_number"`
	AssignedTeamID *string `json:"assigned_team_id,omitempty"`
	AssignedToID   *string `json:"assigned_to_id,omitempty"`
	AssignedToName string  `json:"assigned_to_name,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	EntryID     string `json:"entry_id"`
	IsInternal  bool   `json:"is_internal"`
	BodyPreview string `json:"body_preview"`
}

// TicketTaskCompletedPayload payload.
type TicketTaskCompletedPayload struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
}

// TicketSLAAlertPayload is raised when a ticket breaches a target or is due for
// escalation.
type TicketSLAAlertPayload struct {
	PolicyID           string `json:"policy_id"`
	ResponseBreached   bool   `json:"response_breached"`
	ResolutionBreached bool   `json:"resolution_breached"`
	ShouldEscalate     bool   `json:"should_escalate"`
}
