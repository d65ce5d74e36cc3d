package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// Workflow integrity failure reasons reported in error details.
const (
	WorkflowReasonInitialCount     = "initial_stage_count"
	WorkflowReasonDuplicateStage   = "duplicate_stage_id"
	WorkflowReasonDuplicateSlug    = "duplicate_slug"
	WorkflowReasonDuplicateTrans   = "duplicate_transition_id"
	WorkflowReasonUnknownStageType = "unknown_stage_type"
	WorkflowReasonUnknownGate      = "unknown_requires_input"
	WorkflowReasonDanglingTarget   = "unknown_to_stage"
	WorkflowReasonDeadEnd          = "non_terminal_without_transitions"
	WorkflowReasonNoTerminalPath   = "cannot_reach_terminal"
)

// WorkflowService is the workflow definition store.
type WorkflowService struct {
	workflows repository.WorkflowRepository
	tickets   repository.TicketRepository
	tx        repository.Transactor
	logger    *zap.Logger
}

// WorkflowDependencies bundles repositories for the definition store.
type WorkflowDependencies struct {
	WorkflowRepo repository.WorkflowRepository
	TicketRepo   repository.TicketRepository
	Transactor   repository.Transactor
	Logger       *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		workflows: deps.WorkflowRepo,
		tickets:   deps.TicketRepo,
		tx:        deps.Transactor,
		logger:    logger,
	}
}

// CreateWorkflow validates and stores a new definition.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, wf *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error) {
	if strings.TrimSpace(wf.ID) == "" {
		wf.ID = uuid.NewString()
	}
	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("workflow created", zap.String("workflow_id", wf.ID), zap.Int("stages", len(wf.Stages)))
	return wf, nil
}

// UpdateWorkflow replaces a definition. While open tickets reference the
// workflow only additive edits are accepted.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, id string, wf *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error) {
	wf.ID = id
	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.workflows.GetByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperrors.NewNotFound("workflow", map[string]any{"workflow_id": id})
			}
			return err
		}
		openByStage, err := s.tickets.OpenCountByStage(ctx, id)
		if err != nil {
			return err
		}
		if len(openByStage) > 0 {
			if err := checkAdditive(current, wf, openByStage); err != nil {
				return err
			}
		}
		wf.Version = current.Version
		return s.workflows.Update(ctx, wf)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("workflow updated", zap.String("workflow_id", wf.ID), zap.Int("version", wf.Version))
	return wf, nil
}

// GetWorkflow returns a definition.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("workflow", map[string]any{"workflow_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	wf.SortForDisplay()
	return wf, nil
}

// ListWorkflows returns every definition.
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	list, err := s.workflows.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range list {
		list[i].SortForDisplay()
	}
	return list, nil
}

// ValidateWorkflow enforces graph integrity and normalizes empty gates to none.
func ValidateWorkflow(wf *domain.WorkflowDefinition) error {
	if strings.TrimSpace(wf.Name) == "" {
		return apperrors.NewValidationError("workflow name required", nil)
	}
	if len(wf.Stages) == 0 {
		return apperrors.NewValidationError("workflow needs at least one stage", nil)
	}

	stageIDs := make(map[string]struct{}, len(wf.Stages))
	slugs := make(map[string]struct{}, len(wf.Stages))
	transitionIDs := make(map[string]struct{})
	initials := 0
	var initialID string

	for i := range wf.Stages {
		stage := &wf.Stages[i]
		if strings.TrimSpace(stage.ID) == "" || strings.TrimSpace(stage.Slug) == "" || strings.TrimSpace(stage.Name) == "" {
			return apperrors.NewValidationError("stage id, slug and name required", map[string]any{"stage_index": i})
		}
		if !stage.Type.Valid() {
			return integrityError(WorkflowReasonUnknownStageType, map[string]any{"stage_id": stage.ID, "stage_type": stage.Type})
		}
		if _, dup := stageIDs[stage.ID]; dup {
			return integrityError(WorkflowReasonDuplicateStage, map[string]any{"stage_id": stage.ID})
		}
		stageIDs[stage.ID] = struct{}{}
		if _, dup := slugs[stage.Slug]; dup {
			return integrityError(WorkflowReasonDuplicateSlug, map[string]any{"slug": stage.Slug})
		}
		slugs[stage.Slug] = struct{}{}
		if stage.Type == domain.StageTypeInitial {
			initials++
			initialID = stage.ID
		}

		for j := range stage.Transitions {
			tr := &stage.Transitions[j]
			gate, err := domain.ParseInputGate(string(tr.RequiresInput))
			if err != nil {
				return integrityError(WorkflowReasonUnknownGate, map[string]any{"transition_id": tr.ID, "requires_input": tr.RequiresInput})
			}
			tr.RequiresInput = gate
			if strings.TrimSpace(tr.ID) == "" {
				return apperrors.NewValidationError("transition id required", map[string]any{"stage_id": stage.ID})
			}
			if _, dup := transitionIDs[tr.ID]; dup {
				return integrityError(WorkflowReasonDuplicateTrans, map[string]any{"transition_id": tr.ID})
			}
			transitionIDs[tr.ID] = struct{}{}
		}
	}
	if initials != 1 {
		return integrityError(WorkflowReasonInitialCount, map[string]any{"initial_stages": initials})
	}

	for _, stage := range wf.Stages {
		for _, tr := range stage.Transitions {
			if _, ok := stageIDs[tr.ToStageID]; !ok {
				return integrityError(WorkflowReasonDanglingTarget, map[string]any{
					"stage_id":      stage.ID,
					"transition_id": tr.ID,
					"to_stage_id":   tr.ToStageID,
				})
			}
		}
		if !stage.Type.IsTerminal() && len(stage.Transitions) == 0 {
			return integrityError(WorkflowReasonDeadEnd, map[string]any{"stage_id": stage.ID})
		}
	}

	if stuck := stagesWithoutTerminalPath(wf, initialID); len(stuck) > 0 {
		return integrityError(WorkflowReasonNoTerminalPath, map[string]any{"stage_ids": stuck})
	}
	return nil
}

// stagesWithoutTerminalPath lists stages reachable from the initial stage that
// cannot reach any terminal stage. Transitions on terminal stages are ignored.
func stagesWithoutTerminalPath(wf *domain.WorkflowDefinition, initialID string) []string {
	incoming := make(map[string][]string)
	outgoing := make(map[string][]string)
	var terminals []string
	for _, stage := range wf.Stages {
		if stage.Type.IsTerminal() {
			terminals = append(terminals, stage.ID)
			continue
		}
		for _, tr := range stage.Transitions {
			outgoing[stage.ID] = append(outgoing[stage.ID], tr.ToStageID)
			incoming[tr.ToStageID] = append(incoming[tr.ToStageID], stage.ID)
		}
	}

	canFinish := walk(terminals, incoming)
	reachable := walk([]string{initialID}, outgoing)

	var stuck []string
	for _, stage := range wf.Stages {
		_, isReachable := reachable[stage.ID]
		_, finishes := canFinish[stage.ID]
		if isReachable && !finishes {
			stuck = append(stuck, stage.ID)
		}
	}
	return stuck
}

func walk(start []string, edges map[string][]string) map[string]struct{} {
	seen := make(map[string]struct{}, len(start))
	queue := append([]string(nil), start...)
	for _, id := range start {
		seen[id] = struct{}{}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range edges[id] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}

// checkAdditive rejects edits that could strand an open ticket: removed stages
// or transitions, changed stage types, destinations or gates.
func checkAdditive(current, next *domain.WorkflowDefinition, openByStage map[string]int) error {
	for _, oldStage := range current.Stages {
		newStage, ok := next.Stage(oldStage.ID)
		if !ok {
			details := map[string]any{"workflow_id": current.ID, "stage_id": oldStage.ID, "reason": "stage_removed"}
			if n := openByStage[oldStage.ID]; n > 0 {
				details["open_tickets"] = n
			}
			return apperrors.NewWorkflowInUse(fmt.Sprintf("stage %s cannot be removed while tickets are open", oldStage.ID), details)
		}
		if newStage.Type != oldStage.Type {
			return apperrors.NewWorkflowInUse("stage type cannot change while tickets are open", map[string]any{
				"workflow_id": current.ID, "stage_id": oldStage.ID, "reason": "stage_type_changed",
			})
		}
		for _, oldTr := range oldStage.Transitions {
			newTr, ok := newStage.Transition(oldTr.ID)
			if !ok {
				return apperrors.NewWorkflowInUse("transition cannot be removed while tickets are open", map[string]any{
					"workflow_id": current.ID, "transition_id": oldTr.ID, "reason": "transition_removed",
				})
			}
			if newTr.ToStageID != oldTr.ToStageID || newTr.RequiresInput != normalizeGate(oldTr.RequiresInput) {
				return apperrors.NewWorkflowInUse("transition behavior cannot change while tickets are open", map[string]any{
					"workflow_id": current.ID, "transition_id": oldTr.ID, "reason": "transition_changed",
				})
			}
		}
	}
	return nil
}

func normalizeGate(g domain.InputGate) domain.InputGate {
	if g == "" {
		return domain.GateNone
	}
	return g
}

func integrityError(reason string, details map[string]any) error {
	details["reason"] = reason
	return apperrors.NewUnknownWorkflowReference("workflow graph is inconsistent", details)
}
