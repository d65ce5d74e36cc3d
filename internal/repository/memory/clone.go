package memory

import (
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
)

func cloneWorkflow(wf domain.WorkflowDefinition) domain.WorkflowDefinition {
	out := wf
	out.Stages = make([]domain.Stage, len(wf.Stages))
	for i, stage := range wf.Stages {
		out.Stages[i] = stage
		if stage.AssignedTeamID != nil {
			teamID := *stage.AssignedTeamID
			out.Stages[i].AssignedTeamID = &teamID
		}
		out.Stages[i].Transitions = append([]domain.Transition(nil), stage.Transitions...)
	}
	return out
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	out := t
	out.AssignedTeamID = clonePtr(t.AssignedTeamID)
	out.AssignedToID = clonePtr(t.AssignedToID)
	out.ScheduledAt = cloneTime(t.ScheduledAt)
	out.ScheduledEndAt = cloneTime(t.ScheduledEndAt)
	out.FirstRespondedAt = cloneTime(t.FirstRespondedAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	if t.Diagnosis != nil {
		d := *t.Diagnosis
		out.Diagnosis = &d
	}
	out.PartsRequired = append([]domain.Part(nil), t.PartsRequired...)
	out.Tags = append([]string(nil), t.Tags...)
	out.Tasks = make([]domain.Task, len(t.Tasks))
	for i, task := range t.Tasks {
		out.Tasks[i] = task
		out.Tasks[i].CompletedAt = cloneTime(task.CompletedAt)
	}
	if t.FormValues != nil {
		out.FormValues = make(map[string]any, len(t.FormValues))
		for k, v := range t.FormValues {
			out.FormValues[k] = v
		}
	}
	out.Timeline = nil
	return out
}

func cloneEngineer(e domain.Engineer) domain.Engineer {
	out := e
	out.WorkingHours = append([]domain.WorkingHours(nil), e.WorkingHours...)
	out.Holidays = append([]string(nil), e.Holidays...)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time { return clonePtr(t) }
