package dto

import (
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/service"
)

// CreateTicketRequest payload. FormValues holds the intake form answers as sent.
type CreateTicketRequest struct {
	WorkflowID     string                `json:"workflow_id" validate:"required"`
	Priority       domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	CompanyID      string                `json:"company_id" validate:"max=100"`
	CompanyName    string                `json:"company_name" validate:"max=200"`
	Subject        string                `json:"subject" validate:"required,max=300"`
	Description    string                `json:"description"`
	AssignedTeamID *string               `json:"assigned_team_id"`
	Tags           []string              `json:"tags" validate:"max=20,dive,max=50"`
	FormValues     map[string]any        `json:"form_values"`
}

// ToInput maps the request onto the service input.
func (r CreateTicketRequest) ToInput() service.TicketCreateInput {
	return service.TicketCreateInput{
		WorkflowID:     r.WorkflowID,
		Priority:       r.Priority,
		CompanyID:      r.CompanyID,
		CompanyName:    r.CompanyName,
		Subject:        r.Subject,
		Description:    r.Description,
		AssignedTeamID: r.AssignedTeamID,
		Tags:           r.Tags,
		FormValues:     r.FormValues,
	}
}

// PartRequest is one line of a parts list.
type PartRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Notes    string `json:"notes"`
}

// TransitionRequest payload. Gate-specific requirements are checked by the
// state machine, not here.
type TransitionRequest struct {
	TransitionID            string        `json:"transition_id" validate:"required"`
	AssignedToID            *string       `json:"assigned_to_id"`
	AssignedToName          string        `json:"assigned_to_name"`
	ScheduledAt             *time.Time    `json:"scheduled_at"`
	ScheduledEndAt          *time.Time    `json:"scheduled_end_at"`
	ScheduleNotes           string        `json:"schedule_notes"`
	DiagnosisFindings       string        `json:"diagnosis_findings"`
	DiagnosisRecommendation string        `json:"diagnosis_recommendation"`
	PartsList               []PartRequest `json:"parts_list" validate:"dive"`
	Notes                   string        `json:"notes"`
	ResolutionNotes         string        `json:"resolution_notes"`
}

// ToInput maps the request onto the service input.
func (r TransitionRequest) ToInput() service.TransitionInput {
	parts := make([]domain.Part, 0, len(r.PartsList))
	for _, p := range r.PartsList {
		parts = append(parts, domain.Part{Name: p.Name, Quantity: p.Quantity, Notes: p.Notes})
	}
	return service.TransitionInput{
		TransitionID:            r.TransitionID,
		AssignedToID:            r.AssignedToID,
		AssignedToName:          r.AssignedToName,
		ScheduledAt:             r.ScheduledAt,
		ScheduledEndAt:          r.ScheduledEndAt,
		ScheduleNotes:           r.ScheduleNotes,
		DiagnosisFindings:       r.DiagnosisFindings,
		DiagnosisRecommendation: r.DiagnosisRecommendation,
		PartsList:               parts,
		Notes:                   r.Notes,
		ResolutionNotes:         r.ResolutionNotes,
	}
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content" validate:"required"`
	IsInternal bool   `json:"is_internal"`
}

// CreateTaskRequest payload.
type CreateTaskRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Assignee string `json:"assignee"`
}

// TimelineEntryResponse is one timeline item.
type TimelineEntryResponse struct {
	ID          string                   `json:"id"`
	Type        domain.TimelineEntryType `json:"type"`
	Description string                   `json:"description"`
	UserName    string                   `json:"user_name"`
	IsInternal  bool                     `json:"is_internal"`
	CreatedAt   time.Time                `json:"created_at"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID               string                  `json:"id"`
	TicketNumber     string                  `json:"ticket_number"`
	WorkflowID       string                  `json:"workflow_id"`
	CurrentStageID   string                  `json:"current_stage_id"`
	StageEnteredAt   time.Time               `json:"stage_entered_at"`
	Priority         domain.TicketPriority   `json:"priority"`
	IsOpen           bool                    `json:"is_open"`
	CompanyID        string                  `json:"company_id,omitempty"`
	CompanyName      string                  `json:"company_name,omitempty"`
	Subject          string                  `json:"subject"`
	Description      string                  `json:"description,omitempty"`
	AssignedTeamID   *string                 `json:"assigned_team_id"`
	AssignedToID     *string                 `json:"assigned_to_id"`
	AssignedToName   string                  `json:"assigned_to_name,omitempty"`
	ScheduledAt      *time.Time              `json:"scheduled_at"`
	ScheduledEndAt   *time.Time              `json:"scheduled_end_at"`
	ScheduleNotes    string                  `json:"schedule_notes,omitempty"`
	Diagnosis        *domain.Diagnosis       `json:"diagnosis"`
	PartsRequired    []domain.Part           `json:"parts_required"`
	QuotationNotes   string                  `json:"quotation_notes,omitempty"`
	ResolutionNotes  string                  `json:"resolution_notes,omitempty"`
	Tags             []string                `json:"tags"`
	FormValues       map[string]any          `json:"form_values,omitempty"`
	Tasks            []domain.Task           `json:"tasks"`
	Timeline         []TimelineEntryResponse `json:"timeline"`
	FirstRespondedAt *time.Time              `json:"first_responded_at"`
	ResolvedAt       *time.Time              `json:"resolved_at"`
	ClosedAt         *time.Time              `json:"closed_at"`
	Version          int                     `json:"version"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewTicketResponse renders a ticket and whatever timeline it carries.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		WorkflowID:       t.WorkflowID,
		CurrentStageID:   t.CurrentStageID,
		StageEnteredAt:   t.StageEnteredAt,
		Priority:         t.Priority,
		IsOpen:           t.IsOpen,
		CompanyID:        t.CompanyID,
		CompanyName:      t.CompanyName,
		Subject:          t.Subject,
		Description:      t.Description,
		AssignedTeamID:   t.AssignedTeamID,
		AssignedToID:     t.AssignedToID,
		AssignedToName:   t.AssignedToName,
		ScheduledAt:      t.ScheduledAt,
		ScheduledEndAt:   t.ScheduledEndAt,
		ScheduleNotes:    t.ScheduleNotes,
		Diagnosis:        t.Diagnosis,
		PartsRequired:    nonNil(t.PartsRequired),
		QuotationNotes:   t.QuotationNotes,
		ResolutionNotes:  t.ResolutionNotes,
		Tags:             nonNil(t.Tags),
		FormValues:       t.FormValues,
		Tasks:            nonNil(t.Tasks),
		Timeline:         TimelineResponses(t.Timeline),
		FirstRespondedAt: t.FirstRespondedAt,
		ResolvedAt:       t.ResolvedAt,
		ClosedAt:         t.ClosedAt,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// TimelineResponses renders timeline entries.
func TimelineResponses(entries []domain.TimelineEntry) []TimelineEntryResponse {
	resp := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, TimelineEntryResponse{
			ID:          e.ID,
			Type:        e.Type,
			Description: e.Description,
			UserName:    e.UserName,
			IsInternal:  e.IsInternal,
			CreatedAt:   e.CreatedAt,
		})
	}
	return resp
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
