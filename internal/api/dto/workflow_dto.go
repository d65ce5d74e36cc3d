package dto

import "github.com/fieldops/msp-workflow/internal/domain"

// WorkflowRequest is the body of workflow create and replace calls. Graph
// integrity is checked by the workflow service.
type WorkflowRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name" validate:"required,max=200"`
	Stages []domain.Stage `json:"stages" validate:"required,min=1"`
}

// ToDefinition builds the domain definition.
func (r WorkflowRequest) ToDefinition() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{ID: r.ID, Name: r.Name, Stages: r.Stages}
}
