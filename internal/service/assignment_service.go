package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// AssignmentService is the assignment router. It only suggests; the state
// machine performs the assignment.
type AssignmentService struct {
	tickets   repository.TicketRepository
	engineers repository.EngineerRepository
	teams     repository.TeamRepository
	log       repository.AssignmentLogRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo        repository.TicketRepository
	EngineerRepo      repository.EngineerRepository
	TeamRepo          repository.TeamRepository
	AssignmentLogRepo repository.AssignmentLogRepository
}

// AssigneeCandidate is one team member with the data the router ranked on.
type AssigneeCandidate struct {
	EngineerID     string             `json:"engineer_id"`
	Name           string             `json:"name"`
	Specialization string             `json:"specialization,omitempty"`
	OpenTickets    int                `json:"open_tickets"`
	LastTicket     *domain.LastTicket `json:"last_ticket,omitempty"`
	LastAssignedAt *time.Time         `json:"last_assigned_at,omitempty"`
	SameCompany    bool               `json:"same_company"`
}

// AssigneeSuggestion is the router's answer for a team and ticket. EngineerID is
// nil for manual teams or teams without members.
type AssigneeSuggestion struct {
	TeamID       string                `json:"team_id"`
	Mode         domain.AssignmentMode `json:"mode"`
	EngineerID   *string               `json:"engineer_id,omitempty"`
	EngineerName string                `json:"engineer_name,omitempty"`
	Candidates   []AssigneeCandidate   `json:"candidates"`
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:   deps.TicketRepo,
		engineers: deps.EngineerRepo,
		teams:     deps.TeamRepo,
		log:       deps.AssignmentLogRepo,
	}
}

// SuggestForTicket loads the ticket and delegates to SuggestAssignee.
func (s *AssignmentService) SuggestForTicket(ctx context.Context, teamID, ticketID string) (*AssigneeSuggestion, error) {
	var ticket *domain.Ticket
	if strings.TrimSpace(ticketID) != "" {
		var err error
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
	}
	return s.SuggestAssignee(ctx, teamID, ticket)
}

// SuggestAssignee ranks the team's members by the team's assignment mode.
// round_robin picks the least recently assigned member (never assigned first,
// ties by engineer id); load_balanced picks the fewest open tickets, ties in
// round-robin order.
func (s *AssignmentService) SuggestAssignee(ctx context.Context, teamID string, ticket *domain.Ticket) (*AssigneeSuggestion, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
		}
		return nil, apperrors.MapError(err)
	}

	candidates, err := s.candidates(ctx, team, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	suggestion := &AssigneeSuggestion{TeamID: team.ID, Mode: team.AssignmentMode, Candidates: candidates}
	if len(candidates) == 0 {
		return suggestion, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return roundRobinLess(candidates[i], candidates[j]) })
	switch team.AssignmentMode {
	case domain.AssignmentRoundRobin:
		suggestion.EngineerID = &candidates[0].EngineerID
		suggestion.EngineerName = candidates[0].Name
	case domain.AssignmentLoadBalanced:
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].OpenTickets < candidates[j].OpenTickets })
		suggestion.EngineerID = &candidates[0].EngineerID
		suggestion.EngineerName = candidates[0].Name
	default:
		// manual: list only
	}
	return suggestion, nil
}

// RecordAssignment advances the round-robin cursor for teamID.
func (s *AssignmentService) RecordAssignment(ctx context.Context, teamID, engineerID string, at time.Time) error {
	return s.log.Touch(ctx, teamID, engineerID, at)
}

func (s *AssignmentService) candidates(ctx context.Context, team *domain.Team, ticket *domain.Ticket) ([]AssigneeCandidate, error) {
	if len(team.MemberIDs) == 0 {
		return []AssigneeCandidate{}, nil
	}
	members, err := s.engineers.ListByIDs(ctx, team.MemberIDs)
	if err != nil {
		return nil, err
	}
	open, err := s.tickets.OpenCountByAssignee(ctx, team.MemberIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.tickets.LatestByAssignee(ctx, team.MemberIDs)
	if err != nil {
		return nil, err
	}
	lastAssigned, err := s.log.LastAssigned(ctx, team.ID)
	if err != nil {
		return nil, err
	}

	result := make([]AssigneeCandidate, 0, len(members))
	for _, engineer := range members {
		candidate := AssigneeCandidate{
			EngineerID:     engineer.ID,
			Name:           engineer.Name,
			Specialization: engineer.Specialization,
			OpenTickets:    open[engineer.ID],
		}
		if last, ok := latest[engineer.ID]; ok {
			last := last
			candidate.LastTicket = &last
			candidate.SameCompany = ticket != nil && ticket.CompanyName != "" &&
				strings.EqualFold(last.CompanyName, ticket.CompanyName)
		}
		if at, ok := lastAssigned[engineer.ID]; ok {
			at := at
			candidate.LastAssignedAt = &at
		}
		result = append(result, candidate)
	}
	return result, nil
}

func roundRobinLess(a, b AssigneeCandidate) bool {
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
		return true
	case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt != nil && b.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
		return a.LastAssignedAt.Before(*b.LastAssignedAt)
	}
	return a.EngineerID < b.EngineerID
}
