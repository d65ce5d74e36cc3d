// Package seed loads reference data (workflows, engineers, teams and SLA
// policies) from a YAML document.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
	"github.com/fieldops/msp-workflow/internal/service"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// Document is the on-disk seed layout.
type Document struct {
	Workflows   []domain.WorkflowDefinition `yaml:"workflows"`
	Engineers   []Engineer                  `yaml:"engineers"`
	Teams       []domain.Team               `yaml:"teams"`
	SLAPolicies []SLAPolicy                 `yaml:"sla_policies"`
}

// Engineer is the seed form of domain.Engineer.
type Engineer struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Specialization string         `yaml:"specialization"`
	WorkingHours   []WorkingHours `yaml:"working_hours"`
	Holidays       []string       `yaml:"holidays"`
}

// WorkingHours lists the weekdays sharing one window.
type WorkingHours struct {
	Days  []string `yaml:"days"`
	Start string   `yaml:"start"`
	End   string   `yaml:"end"`
}

// SLAPolicy is the seed form of domain.SLAPolicy.
type SLAPolicy struct {
	ID                      string   `yaml:"id"`
	Name                    string   `yaml:"name"`
	Priority                string   `yaml:"priority"`
	ResponseTimeHours       float64  `yaml:"response_time_hours"`
	ResolutionTimeHours     float64  `yaml:"resolution_time_hours"`
	ResponseBusinessHours   bool     `yaml:"response_business_hours"`
	ResolutionBusinessHours bool     `yaml:"resolution_business_hours"`
	BusinessHoursStart      string   `yaml:"business_hours_start"`
	BusinessHoursEnd        string   `yaml:"business_hours_end"`
	BusinessDays            []string `yaml:"business_days"`
	EscalationAfterHours    float64  `yaml:"escalation_after_hours"`
	Timezone                string   `yaml:"timezone"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Workflows   int
	Engineers   int
	Teams       int
	SLAPolicies int
}

// LoadFile reads a seed document from path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &doc, nil
}

// Loader writes a document through the repositories. Workflows go through the
// workflow service so they are validated like API submissions.
type Loader struct {
	repos     repository.Repositories
	workflows *service.WorkflowService
	logger    *zap.Logger
}

// NewLoader constructs a Loader.
func NewLoader(repos repository.Repositories, workflows *service.WorkflowService, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{repos: repos, workflows: workflows, logger: logger}
}

// Apply upserts every record in doc. Engineers are written before teams so
// membership references resolve.
func (l *Loader) Apply(ctx context.Context, doc *Document) (Summary, error) {
	var summary Summary

	for _, raw := range doc.Engineers {
		eng, err := raw.toDomain()
		if err != nil {
			return summary, err
		}
		if err := l.repos.Engineers.Upsert(ctx, eng); err != nil {
			return summary, fmt.Errorf("engineer %s: %w", eng.ID, err)
		}
		summary.Engineers++
	}

	for i := range doc.Teams {
		team := doc.Teams[i]
		if team.AssignmentMode == "" {
			team.AssignmentMode = domain.AssignmentManual
		}
		if !team.AssignmentMode.Valid() {
			return summary, fmt.Errorf("team %s: unknown assignment_mode %q", team.ID, team.AssignmentMode)
		}
		for _, member := range team.MemberIDs {
			if _, err := l.repos.Engineers.GetByID(ctx, member); err != nil {
				if repository.IsNotFound(err) {
					return summary, apperrors.NewUnknownEngineer(member)
				}
				return summary, err
			}
		}
		if err := l.repos.Teams.Upsert(ctx, &team); err != nil {
			return summary, fmt.Errorf("team %s: %w", team.ID, err)
		}
		summary.Teams++
	}

	for _, raw := range doc.SLAPolicies {
		policy, err := raw.toDomain()
		if err != nil {
			return summary, err
		}
		if err := l.repos.SLAPolicies.Upsert(ctx, policy); err != nil {
			return summary, fmt.Errorf("sla policy %s: %w", policy.ID, err)
		}
		summary.SLAPolicies++
	}

	for i := range doc.Workflows {
		wf := doc.Workflows[i]
		if err := l.applyWorkflow(ctx, &wf); err != nil {
			return summary, fmt.Errorf("workflow %s: %w", wf.ID, err)
		}
		summary.Workflows++
	}

	l.logger.Info("seed applied",
		zap.Int("workflows", summary.Workflows),
		zap.Int("engineers", summary.Engineers),
		zap.Int("teams", summary.Teams),
		zap.Int("sla_policies", summary.SLAPolicies))
	return summary, nil
}

func (l *Loader) applyWorkflow(ctx context.Context, wf *domain.WorkflowDefinition) error {
	if wf.ID != "" {
		if _, err := l.workflows.GetWorkflow(ctx, wf.ID); err == nil {
			_, err = l.workflows.UpdateWorkflow(ctx, wf.ID, wf)
			return err
		} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return err
		}
	}
	_, err := l.workflows.CreateWorkflow(ctx, wf)
	return err
}

func (e Engineer) toDomain() (*domain.Engineer, error) {
	eng := &domain.Engineer{
		ID:             e.ID,
		Name:           e.Name,
		Specialization: e.Specialization,
		Holidays:       e.Holidays,
	}
	if eng.ID == "" {
		return nil, fmt.Errorf("engineer without id")
	}
	for _, holiday := range e.Holidays {
		if _, err := time.Parse(domain.DateLayout, holiday); err != nil {
			return nil, fmt.Errorf("engineer %s: invalid holiday %q", e.ID, holiday)
		}
	}
	for _, wh := range e.WorkingHours {
		start, err := domain.ParseClockTime(wh.Start)
		if err != nil {
			return nil, fmt.Errorf("engineer %s: %w", e.ID, err)
		}
		end, err := domain.ParseClockTime(wh.End)
		if err != nil {
			return nil, fmt.Errorf("engineer %s: %w", e.ID, err)
		}
		if end <= start {
			return nil, fmt.Errorf("engineer %s: working hours end %s is not after start %s", e.ID, wh.End, wh.Start)
		}
		for _, rawDay := range wh.Days {
			day, err := domain.ParseWeekday(rawDay)
			if err != nil {
				return nil, fmt.Errorf("engineer %s: %w", e.ID, err)
			}
			eng.WorkingHours = append(eng.WorkingHours, domain.WorkingHours{Weekday: day, Start: start, End: end})
		}
	}
	return eng, nil
}

func (p SLAPolicy) toDomain() (*domain.SLAPolicy, error) {
	priority := domain.TicketPriority(p.Priority)
	if !priority.Valid() {
		return nil, fmt.Errorf("sla policy %s: unknown priority %q", p.ID, p.Priority)
	}
	policy := &domain.SLAPolicy{
		ID:                      p.ID,
		Name:                    p.Name,
		Priority:                priority,
		ResponseTimeHours:       p.ResponseTimeHours,
		ResolutionTimeHours:     p.ResolutionTimeHours,
		ResponseBusinessHours:   p.ResponseBusinessHours,
		ResolutionBusinessHours: p.ResolutionBusinessHours,
		EscalationAfterHours:    p.EscalationAfterHours,
		Timezone:                p.Timezone,
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return nil, fmt.Errorf("sla policy %s: %w", p.ID, err)
		}
	}
	var err error
	if p.BusinessHoursStart != "" {
		if policy.BusinessHoursStart, err = domain.ParseClockTime(p.BusinessHoursStart); err != nil {
			return nil, fmt.Errorf("sla policy %s: %w", p.ID, err)
		}
	}
	if p.BusinessHoursEnd != "" {
		if policy.BusinessHoursEnd, err = domain.ParseClockTime(p.BusinessHoursEnd); err != nil {
			return nil, fmt.Errorf("sla policy %s: %w", p.ID, err)
		}
	}
	for _, rawDay := range p.BusinessDays {
		day, err := domain.ParseWeekday(rawDay)
		if err != nil {
			return nil, fmt.Errorf("sla policy %s: %w", p.ID, err)
		}
		policy.BusinessDays = append(policy.BusinessDays, day)
	}
	return policy, nil
}
