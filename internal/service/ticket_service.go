package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/events"
	"github.com/fieldops/msp-workflow/internal/observability"
	"github.com/fieldops/msp-workflow/internal/persistence"
	"github.com/fieldops/msp-workflow/internal/repository"
	"github.com/fieldops/msp-workflow/internal/sla"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// TicketService is the ticket state machine.
type TicketService struct {
	tickets    repository.TicketRepository
	timeline   repository.TimelineRepository
	workflows  repository.WorkflowRepository
	engineers  repository.EngineerRepository
	teams      repository.TeamRepository
	policies   repository.SLAPolicyRepository
	tx         repository.Transactor
	locker     persistence.Locker
	scheduling *SchedulingService
	router     *AssignmentService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo        repository.TicketRepository
	TimelineRepo      repository.TimelineRepository
	WorkflowRepo      repository.WorkflowRepository
	EngineerRepo      repository.EngineerRepository
	TeamRepo          repository.TeamRepository
	SLAPolicyRepo     repository.SLAPolicyRepository
	Transactor        repository.Transactor
	Locker            persistence.Locker
	Scheduling        *SchedulingService
	AssignmentService *AssignmentService
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	Now               func() time.Time
}

// TicketCreateInput describes ticket creation payload. FormValues is stored as
// given.
type TicketCreateInput struct {
	WorkflowID     string
	Priority       domain.TicketPriority
	CompanyID      string
	CompanyName    string
	Subject        string
	Description    string
	AssignedTeamID *string
	Tags           []string
	FormValues     map[string]any
}

// TransitionInput is the payload of a transition request. Which fields are
// required depends on the transition's gate.
type TransitionInput struct {
	TransitionID            string
	AssignedToID            *string
	AssignedToName          string
	ScheduledAt             *time.Time
	ScheduledEndAt          *time.Time
	ScheduleNotes           string
	DiagnosisFindings       string
	DiagnosisRecommendation string
	PartsList               []domain.Part
	Notes                   string
	ResolutionNotes         string
}

// TaskInput describes a checklist item.
type TaskInput struct {
	Name     string
	Assignee string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		timeline:   deps.TimelineRepo,
		workflows:  deps.WorkflowRepo,
		engineers:  deps.EngineerRepo,
		teams:      deps.TeamRepo,
		policies:   deps.SLAPolicyRepo,
		tx:         deps.Transactor,
		locker:     deps.Locker,
		scheduling: deps.Scheduling,
		router:     deps.AssignmentService,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if svc.locker == nil {
		svc.locker = persistence.NewKeyedMutex()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateTicket opens a ticket in the workflow's initial stage.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	wf, err := s.workflows.GetByID(ctx, input.WorkflowID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("workflow", map[string]any{"workflow_id": input.WorkflowID})
		}
		return nil, apperrors.MapError(err)
	}
	initial, ok := wf.InitialStage()
	if !ok {
		return nil, apperrors.NewUnknownWorkflowReference("workflow has no initial stage", map[string]any{"workflow_id": wf.ID})
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		WorkflowID:     wf.ID,
		CurrentStageID: initial.ID,
		StageEnteredAt: now,
		Priority:       priority,
		IsOpen:         true,
		CompanyID:      strings.TrimSpace(input.CompanyID),
		CompanyName:    strings.TrimSpace(input.CompanyName),
		Subject:        subject,
		Description:    strings.TrimSpace(input.Description),
		AssignedTeamID: input.AssignedTeamID,
		Tags:           input.Tags,
		FormValues:     input.FormValues,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ticket.AssignedTeamID == nil && initial.AssignedTeamID != nil {
		teamID := *initial.AssignedTeamID
		ticket.AssignedTeamID = &teamID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		number, err := s.tickets.NextNumber(ctx)
		if err != nil {
			return err
		}
		ticket.TicketNumber = number
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return s.timeline.Append(ctx, &domain.TimelineEntry{
			TicketID:    ticket.ID,
			Type:        domain.TimelineTicketCreated,
			Description: "Ticket created",
			UserName:    actor.DisplayName(),
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("workflow_id", wf.ID))
	s.publish(ctx, actor, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		TicketNumber: ticket.TicketNumber,
		WorkflowID:   wf.ID,
		StageID:      initial.ID,
		Priority:     ticket.Priority,
		CompanyName:  ticket.CompanyName,
		Subject:      ticket.Subject,
	})
	return s.hydrate(ctx, actor, ticket)
}

// transitionEffects collects what a committed transition must announce.
type transitionEffects struct {
	fromStageID      string
	engineerAssigned bool
	teamRerouted     bool
	team             *domain.Team
}

// ExecuteTransition moves a ticket along one of its current stage's transitions.
// The ticket read, gate handling (including any slot reservation), stage change
// and timeline appends commit together or not at all.
func (s *TicketService) ExecuteTransition(ctx context.Context, actor domain.Actor, ticketID string, input TransitionInput) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if strings.TrimSpace(input.TransitionID) == "" {
		return nil, apperrors.NewValidationError("transition_id required", nil)
	}

	release, err := s.locker.Lock(ctx, ticketLockKey(ticketID))
	if err != nil {
		return nil, apperrors.MapError(fmt.Errorf("acquire ticket lock: %w", err))
	}
	defer release()

	var (
		ticket     *domain.Ticket
		wf         *domain.WorkflowDefinition
		transition domain.Transition
		dest       domain.Stage
		effects    transitionEffects
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		wf, err = s.workflows.GetByID(ctx, ticket.WorkflowID)
		if err != nil {
			return err
		}
		current, ok := wf.Stage(ticket.CurrentStageID)
		if !ok {
			return fmt.Errorf("ticket %s is in unknown stage %s", ticket.ID, ticket.CurrentStageID)
		}
		if current.Type.IsTerminal() {
			return apperrors.NewTicketClosed(ticket.ID)
		}
		tr, ok := current.Transition(input.TransitionID)
		if !ok {
			return apperrors.NewInvalidTransition(ticket.ID, input.TransitionID)
		}
		transition = *tr
		target, ok := wf.Stage(tr.ToStageID)
		if !ok {
			return fmt.Errorf("transition %s points at unknown stage %s", tr.ID, tr.ToStageID)
		}
		dest = *target

		now := s.now().UTC()
		effects.fromStageID = ticket.CurrentStageID
		if err := s.applyGate(ctx, actor, ticket, transition.RequiresInput, input, now, &effects); err != nil {
			return err
		}

		ticket.CurrentStageID = dest.ID
		ticket.StageEnteredAt = now
		ticket.IsOpen = !dest.Type.IsTerminal()
		if ticket.FirstRespondedAt == nil {
			ticket.FirstRespondedAt = &now
		}
		if dest.Type.IsTerminal() {
			ticket.ClosedAt = &now
			if dest.Type == domain.StageTypeTerminalSuccess {
				ticket.ResolvedAt = &now
			}
		}
		ticket.UpdatedAt = now

		entries := []domain.TimelineEntry{{
			TicketID:    ticket.ID,
			Type:        domain.TimelineStageChange,
			Description: "Moved to " + dest.Name,
			UserName:    actor.DisplayName(),
			CreatedAt:   now,
		}}

		if dest.AssignedTeamID != nil && (ticket.AssignedTeamID == nil || *ticket.AssignedTeamID != *dest.AssignedTeamID) {
			team, err := s.teams.GetByID(ctx, *dest.AssignedTeamID)
			if err != nil && !repository.IsNotFound(err) {
				return err
			}
			teamName := *dest.AssignedTeamID
			if team != nil {
				teamName = team.Name
			}
			teamID := *dest.AssignedTeamID
			ticket.AssignedTeamID = &teamID
			effects.teamRerouted = true
			effects.team = team
			entries = append(entries, domain.TimelineEntry{
				TicketID:    ticket.ID,
				Type:        domain.TimelineAssignment,
				Description: "Assigned to team " + teamName,
				UserName:    actor.DisplayName(),
				CreatedAt:   now,
			})
		}

		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		for i := range entries {
			if err := s.timeline.Append(ctx, &entries[i]); err != nil {
				return err
			}
		}
		if effects.engineerAssigned && ticket.AssignedTeamID != nil && s.router != nil {
			if err := s.router.RecordAssignment(ctx, *ticket.AssignedTeamID, *ticket.AssignedToID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordTransition(wf.ID, string(transition.RequiresInput))
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("transition_id", transition.ID),
		zap.String("from_stage_id", effects.fromStageID),
		zap.String("to_stage_id", dest.ID),
		zap.String("requires_input", string(transition.RequiresInput)))

	s.publish(ctx, actor, events.EventTicketTransitioned, ticket.ID, events.TicketTransitionedPayload{
		TicketNumber:  ticket.TicketNumber,
		TransitionID:  transition.ID,
		FromStageID:   effects.fromStageID,
		ToStageID:     dest.ID,
		ToStageName:   dest.Name,
		RequiresInput: transition.RequiresInput,
		IsOpen:        ticket.IsOpen,
		ScheduledAt:   ticket.ScheduledAt,
	})
	if effects.engineerAssigned || effects.teamRerouted {
		s.publish(ctx, actor, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
			TicketNumber:   ticket.TicketNumber,
			AssignedTeamID: ticket.AssignedTeamID,
			AssignedToID:   ticket.AssignedToID,
			AssignedToName: ticket.AssignedToName,
		})
	}
	return s.hydrate(ctx, actor, ticket)
}

// applyGate validates the gate's input and merges it into ticket.
func (s *TicketService) applyGate(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, gate domain.InputGate, input TransitionInput, now time.Time, effects *transitionEffects) error {
	switch gate {
	case domain.GateNone, "":
		return nil

	case domain.GateAssignEngineer:
		if input.AssignedToID == nil || strings.TrimSpace(*input.AssignedToID) == "" {
			return apperrors.NewMissingRequiredInput(string(gate), "assigned_to_id")
		}
		if err := s.assignEngineer(ctx, ticket, *input.AssignedToID, input.AssignedToName); err != nil {
			return err
		}
		effects.engineerAssigned = true
		return nil

	case domain.GateScheduleVisit:
		var missing []string
		if input.ScheduledAt == nil {
			missing = append(missing, "scheduled_at")
		}
		if input.ScheduledEndAt == nil {
			missing = append(missing, "scheduled_end_at")
		}
		hasPayloadEngineer := input.AssignedToID != nil && strings.TrimSpace(*input.AssignedToID) != ""
		if !hasPayloadEngineer && (ticket.AssignedToID == nil || *ticket.AssignedToID == "") {
			missing = append(missing, "assigned_to_id")
		}
		if len(missing) > 0 {
			return apperrors.NewMissingRequiredInput(string(gate), missing...)
		}
		if hasPayloadEngineer && (ticket.AssignedToID == nil || *ticket.AssignedToID != *input.AssignedToID) {
			if err := s.assignEngineer(ctx, ticket, *input.AssignedToID, input.AssignedToName); err != nil {
				return err
			}
			effects.engineerAssigned = true
		}
		if _, err := s.scheduling.ReleaseSlot(ctx, ticket.ID); err != nil {
			return err
		}
		booking, err := s.scheduling.ReserveSlot(ctx, ReserveSlotInput{
			EngineerID:   *ticket.AssignedToID,
			StartTime:    *input.ScheduledAt,
			EndTime:      *input.ScheduledEndAt,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			CompanyName:  ticket.CompanyName,
		})
		if err != nil {
			return err
		}
		start, end := booking.StartTime.UTC(), booking.EndTime.UTC()
		ticket.ScheduledAt = &start
		ticket.ScheduledEndAt = &end
		ticket.ScheduleNotes = strings.TrimSpace(input.ScheduleNotes)
		return nil

	case domain.GateDiagnosis:
		findings := strings.TrimSpace(input.DiagnosisFindings)
		if findings == "" {
			return apperrors.NewMissingRequiredInput(string(gate), "diagnosis_findings")
		}
		ticket.Diagnosis = &domain.Diagnosis{
			Findings:       findings,
			Recommendation: strings.TrimSpace(input.DiagnosisRecommendation),
			DiagnosedBy:    actor.DisplayName(),
			DiagnosedAt:    now,
		}
		return nil

	case domain.GateResolution:
		notes := strings.TrimSpace(input.ResolutionNotes)
		if notes == "" {
			return apperrors.NewMissingRequiredInput(string(gate), "resolution_notes")
		}
		ticket.ResolutionNotes = notes
		return nil

	case domain.GatePartsList:
		parts := make([]domain.Part, 0, len(input.PartsList))
		for _, part := range input.PartsList {
			name := strings.TrimSpace(part.Name)
			if name == "" {
				continue
			}
			if part.Quantity <= 0 {
				part.Quantity = 1
			}
			part.Name = name
			part.Notes = strings.TrimSpace(part.Notes)
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			return apperrors.NewMissingRequiredInput(string(gate), "parts_list")
		}
		ticket.PartsRequired = parts
		return nil

	case domain.GateQuotation:
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			ticket.QuotationNotes = notes
		}
		return nil

	default:
		return fmt.Errorf("unhandled input gate %q", gate)
	}
}

func (s *TicketService) assignEngineer(ctx context.Context, ticket *domain.Ticket, engineerID, displayName string) error {
	engineerID = strings.TrimSpace(engineerID)
	engineer, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewUnknownEngineer(engineerID)
		}
		return err
	}
	ticket.AssignedToID = &engineer.ID
	ticket.AssignedToName = engineer.Name
	if name := strings.TrimSpace(displayName); name != "" {
		ticket.AssignedToName = name
	}
	return nil
}

// AddComment appends a comment. Comments never change the stage, are allowed on
// closed tickets and are not deduplicated.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, content string, isInternal bool) (*domain.Ticket, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	if isInternal && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can post internal notes")
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entry := &domain.TimelineEntry{
		TicketID:    ticket.ID,
		Type:        domain.TimelineComment,
		Description: content,
		UserName:    actor.DisplayName(),
		IsInternal:  isInternal,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.timeline.Append(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actor, events.EventTicketCommentAdded, ticket.ID, events.TicketCommentAddedPayload{
		EntryID:     entry.ID,
		IsInternal:  isInternal,
		BodyPreview: preview(content, 140),
	})
	return s.hydrate(ctx, actor, ticket)
}

// AddTask appends a checklist item to an open ticket.
func (s *TicketService) AddTask(ctx context.Context, actor domain.Actor, ticketID string, input TaskInput) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("task name required", nil)
	}
	ticket, err := s.mutateOpenTicket(ctx, ticketID, func(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
		ticket.Tasks = append(ticket.Tasks, domain.Task{
			ID:       uuid.NewString(),
			Name:     name,
			Status:   domain.TaskStatusPending,
			Assignee: strings.TrimSpace(input.Assignee),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, actor, ticket)
}

// CompleteTask marks a checklist item done and records it on the timeline.
func (s *TicketService) CompleteTask(ctx context.Context, actor domain.Actor, ticketID, taskID string) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	var completed domain.Task
	ticket, err := s.mutateOpenTicket(ctx, ticketID, func(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
		task, ok := ticket.Task(taskID)
		if !ok {
			return apperrors.NewNotFound("task", map[string]any{"ticket_id": ticketID, "task_id": taskID})
		}
		if task.Status == domain.TaskStatusDone {
			return apperrors.NewConflict("task already completed", map[string]any{"task_id": taskID})
		}
		task.Status = domain.TaskStatusDone
		task.CompletedAt = &now
		completed = *task
		return s.timeline.Append(ctx, &domain.TimelineEntry{
			TicketID:    ticket.ID,
			Type:        domain.TimelineTaskCompleted,
			Description: "Completed task " + task.Name,
			UserName:    actor.DisplayName(),
			IsInternal:  true,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, actor, events.EventTicketTaskCompleted, ticket.ID, events.TicketTaskCompletedPayload{
		TaskID:   completed.ID,
		TaskName: completed.Name,
	})
	return s.hydrate(ctx, actor, ticket)
}

// mutateOpenTicket runs fn under the ticket lock and a transaction, then writes
// the ticket back. Closed tickets are rejected.
func (s *TicketService) mutateOpenTicket(ctx context.Context, ticketID string, fn func(ctx context.Context, ticket *domain.Ticket, now time.Time) error) (*domain.Ticket, error) {
	release, err := s.locker.Lock(ctx, ticketLockKey(ticketID))
	if err != nil {
		return nil, apperrors.MapError(fmt.Errorf("acquire ticket lock: %w", err))
	}
	defer release()

	var ticket *domain.Ticket
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.IsOpen {
			return apperrors.NewTicketClosed(ticket.ID)
		}
		now := s.now().UTC()
		if err := fn(ctx, ticket, now); err != nil {
			return err
		}
		ticket.UpdatedAt = now
		return s.tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicket returns the ticket with the timeline the actor may see. Customers
// never see internal entries.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrate(ctx, actor, ticket)
}

// ListTimeline returns the entries the actor may see, oldest first.
func (s *TicketService) ListTimeline(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TimelineEntry, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	entries, err := s.timeline.ListByTicket(ctx, ticketID, actor.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// SLAStatus evaluates the ticket against the policy for its priority.
func (s *TicketService) SLAStatus(ctx context.Context, ticketID string) (*domain.SLAStatus, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	policy, err := s.policies.ForPriority(ctx, ticket.Priority)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("sla policy", map[string]any{"priority": ticket.Priority})
		}
		return nil, apperrors.MapError(err)
	}
	status := sla.Evaluate(policy, ticket, s.now().UTC())
	return &status, nil
}

// OpenSLAStatuses evaluates every open ticket whose priority has a policy.
func (s *TicketService) OpenSLAStatuses(ctx context.Context) ([]domain.SLAStatus, error) {
	tickets, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now().UTC()
	policies := make(map[domain.TicketPriority]*domain.SLAPolicy)
	var result []domain.SLAStatus
	for i := range tickets {
		ticket := &tickets[i]
		policy, cached := policies[ticket.Priority]
		if !cached {
			policy, err = s.policies.ForPriority(ctx, ticket.Priority)
			if err != nil && !repository.IsNotFound(err) {
				return nil, apperrors.MapError(err)
			}
			policies[ticket.Priority] = policy
		}
		if policy == nil {
			continue
		}
		result = append(result, sla.Evaluate(policy, ticket, now))
	}
	return result, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) hydrate(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) (*domain.Ticket, error) {
	entries, err := s.timeline.ListByTicket(ctx, ticket.ID, actor.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Timeline = entries
	return ticket, nil
}

// publish is fire-and-forget: failures are logged and never undo the change.
func (s *TicketService) publish(ctx context.Context, actor domain.Actor, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func ticketLockKey(ticketID string) string {
	return "ticket:" + ticketID
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
