package domain

import (
	"fmt"
	"sort"
	"time"
)

// StageType classifies a stage in a workflow graph.
type StageType string

const (
	StageTypeInitial         StageType = "initial"
	StageTypeInProgress      StageType = "in_progress"
	StageTypeWaiting         StageType = "waiting"
	StageTypeTerminalSuccess StageType = "terminal_success"
	StageTypeTerminalFailure StageType = "terminal_failure"
)

// Valid reports whether t is a known stage type.
func (t StageType) Valid() bool {
	switch t {
	case StageTypeInitial, StageTypeInProgress, StageTypeWaiting, StageTypeTerminalSuccess, StageTypeTerminalFailure:
		return true
	}
	return false
}

// IsTerminal reports whether tickets in this stage are closed.
func (t StageType) IsTerminal() bool {
	return t == StageTypeTerminalSuccess || t == StageTypeTerminalFailure
}

// InputGate names the human-supplied data a transition demands before it commits.
type InputGate string

const (
	GateNone           InputGate = "none"
	GateAssignEngineer InputGate = "assign_engineer"
	GateScheduleVisit  InputGate = "schedule_visit"
	GateDiagnosis      InputGate = "diagnosis"
	GateResolution     InputGate = "resolution"
	GatePartsList      InputGate = "parts_list"
	GateQuotation      InputGate = "quotation"
)

// ParseInputGate converts a stored or submitted value into a gate. The empty string
// means no gate.
func ParseInputGate(raw string) (InputGate, error) {
	if raw == "" {
		return GateNone, nil
	}
	gate := InputGate(raw)
	if !gate.Valid() {
		return "", fmt.Errorf("unknown requires_input %q", raw)
	}
	return gate, nil
}

// Valid reports whether g is a known gate.
func (g InputGate) Valid() bool {
	switch g {
	case GateNone, GateAssignEngineer, GateScheduleVisit, GateDiagnosis, GateResolution, GatePartsList, GateQuotation:
		return true
	}
	return false
}

// Transition is a directed, labeled edge leaving a stage.
type Transition struct {
	ID            string    `json:"id" yaml:"id"`
	ToStageID     string    `json:"to_stage_id" yaml:"to_stage_id"`
	Label         string    `json:"label" yaml:"label"`
	Color         string    `json:"color,omitempty" yaml:"color"`
	RequiresInput InputGate `json:"requires_input" yaml:"requires_input"`
	Order         int       `json:"order" yaml:"order"`
}

// Stage is a named state of a workflow.
type Stage struct {
	ID             string       `json:"id" yaml:"id"`
	Slug           string       `json:"slug" yaml:"slug"`
	Name           string       `json:"name" yaml:"name"`
	Type           StageType    `json:"stage_type" yaml:"stage_type"`
	Order          int          `json:"order" yaml:"order"`
	AssignedTeamID *string      `json:"assigned_team_id,omitempty" yaml:"assigned_team_id"`
	Transitions    []Transition `json:"transitions" yaml:"transitions"`
}

// Transition returns the outgoing transition with the given id.
func (s *Stage) Transition(id string) (*Transition, bool) {
	for i := range s.Transitions {
		if s.Transitions[i].ID == id {
			return &s.Transitions[i], true
		}
	}
	return nil, false
}

// WorkflowDefinition is a stage/transition graph used as a ticket template.
type WorkflowDefinition struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Version   int       `json:"version" yaml:"-"`
	Stages    []Stage   `json:"stages" yaml:"stages"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// InitialStage returns the single stage every ticket starts in.
func (w *WorkflowDefinition) InitialStage() (*Stage, bool) {
	for i := range w.Stages {
		if w.Stages[i].Type == StageTypeInitial {
			return &w.Stages[i], true
		}
	}
	return nil, false
}

// Stage looks a stage up by id.
func (w *WorkflowDefinition) Stage(id string) (*Stage, bool) {
	for i := range w.Stages {
		if w.Stages[i].ID == id {
			return &w.Stages[i], true
		}
	}
	return nil, false
}

// SortForDisplay orders stages and their transitions by their Order fields.
func (w *WorkflowDefinition) SortForDisplay() {
	sort.SliceStable(w.Stages, func(i, j int) bool { return w.Stages[i].Order < w.Stages[j].Order })
	for i := range w.Stages {
		transitions := w.Stages[i].Transitions
		sort.SliceStable(transitions, func(a, b int) bool { return transitions[a].Order < transitions[b].Order })
	}
}
