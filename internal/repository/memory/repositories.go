package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

type workflowRepository struct{ store *Store }

func (r *workflowRepository) Create(ctx context.Context, wf *domain.WorkflowDefinition) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[wf.ID]; exists {
		return apperrors.NewConflict("workflow already exists", map[string]any{"workflow_id": wf.ID})
	}
	now := time.Now().UTC()
	wf.Version = 1
	wf.CreatedAt, wf.UpdatedAt = now, now
	s.workflows[wf.ID] = cloneWorkflow(*wf)
	id := wf.ID
	record(ctx, func() {
		s.mu.Lock()
		delete(s.workflows, id)
		s.mu.Unlock()
	})
	return nil
}

func (r *workflowRepository) Update(ctx context.Context, wf *domain.WorkflowDefinition) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.workflows[wf.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if prev.Version != wf.Version {
		return apperrors.NewConflict("workflow was modified concurrently", map[string]any{"workflow_id": wf.ID})
	}
	wf.Version++
	wf.CreatedAt = prev.CreatedAt
	wf.UpdatedAt = time.Now().UTC()
	s.workflows[wf.ID] = cloneWorkflow(*wf)
	record(ctx, func() {
		s.mu.Lock()
		s.workflows[prev.ID] = prev
		s.mu.Unlock()
	})
	return nil
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	wf, ok := r.store.workflows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneWorkflow(wf)
	return &out, nil
}

func (r *workflowRepository) List(_ context.Context) ([]domain.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]domain.WorkflowDefinition, 0, len(r.store.workflows))
	for _, wf := range r.store.workflows {
		result = append(result, cloneWorkflow(wf))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type ticketRepository struct{ store *Store }

func (r *ticketRepository) NextNumber(_ context.Context) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ticketSeq++
	return fmt.Sprintf(repository.TicketNumberFormat, r.store.ticketSeq), nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.TicketNumber == ticket.TicketNumber {
			return apperrors.NewConflict("ticket number already used", map[string]any{"ticket_number": ticket.TicketNumber})
		}
	}
	ticket.ID = uuid.NewString()
	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	id := ticket.ID
	record(ctx, func() {
		s.mu.Lock()
		delete(s.tickets, id)
		s.mu.Unlock()
	})
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.tickets[ticket.ID]
	if !ok || prev.Version != ticket.Version {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
	}
	ticket.Version++
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	record(ctx, func() {
		s.mu.Lock()
		s.tickets[prev.ID] = prev
		s.mu.Unlock()
	})
	return nil
}

func (r *ticketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (r *ticketRepository) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.IsOpen {
			result = append(result, cloneTicket(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].TicketNumber < result[j].TicketNumber
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ticketRepository) OpenCountByStage(_ context.Context, workflowID string) (map[string]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range r.store.tickets {
		if t.IsOpen && t.WorkflowID == workflowID {
			counts[t.CurrentStageID]++
		}
	}
	return counts, nil
}

func (r *ticketRepository) OpenCountByAssignee(_ context.Context, engineerIDs []string) (map[string]int, error) {
	wanted := toSet(engineerIDs)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range r.store.tickets {
		if !t.IsOpen || t.AssignedToID == nil {
			continue
		}
		if _, ok := wanted[*t.AssignedToID]; ok {
			counts[*t.AssignedToID]++
		}
	}
	return counts, nil
}

func (r *ticketRepository) LatestByAssignee(_ context.Context, engineerIDs []string) (map[string]domain.LastTicket, error) {
	wanted := toSet(engineerIDs)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make(map[string]domain.LastTicket)
	for _, t := range r.store.tickets {
		if t.AssignedToID == nil {
			continue
		}
		engineerID := *t.AssignedToID
		if _, ok := wanted[engineerID]; !ok {
			continue
		}
		if current, seen := result[engineerID]; seen && !t.UpdatedAt.After(current.UpdatedAt) {
			continue
		}
		result[engineerID] = domain.LastTicket{
			TicketID:     t.ID,
			TicketNumber: t.TicketNumber,
			CompanyName:  t.CompanyName,
			UpdatedAt:    t.UpdatedAt,
		}
	}
	return result, nil
}

type timelineRepository struct{ store *Store }

func (r *timelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	s.timeline[entry.TicketID] = append(s.timeline[entry.TicketID], *entry)
	ticketID, entryID := entry.TicketID, entry.ID
	record(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entries := s.timeline[ticketID]
		for i := range entries {
			if entries[i].ID == entryID {
				s.timeline[ticketID] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *timelineRepository) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TimelineEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.TimelineEntry
	for _, entry := range r.store.timeline[ticketID] {
		if entry.IsInternal && !includeInternal {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

type engineerRepository struct{ store *Store }

func (r *engineerRepository) Upsert(_ context.Context, engineer *domain.Engineer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := r.store.engineers[engineer.ID]; ok {
		engineer.CreatedAt = prev.CreatedAt
	} else {
		engineer.CreatedAt = now
	}
	engineer.UpdatedAt = now
	r.store.engineers[engineer.ID] = cloneEngineer(*engineer)
	return nil
}

func (r *engineerRepository) GetByID(_ context.Context, id string) (*domain.Engineer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	engineer, ok := r.store.engineers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneEngineer(engineer)
	return &out, nil
}

func (r *engineerRepository) ListByIDs(_ context.Context, ids []string) ([]domain.Engineer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Engineer
	for id := range toSet(ids) {
		if engineer, ok := r.store.engineers[id]; ok {
			result = append(result, cloneEngineer(engineer))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *engineerRepository) List(_ context.Context) ([]domain.Engineer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]domain.Engineer, 0, len(r.store.engineers))
	for _, engineer := range r.store.engineers {
		result = append(result, cloneEngineer(engineer))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type visitBookingRepository struct{ store *Store }

// LockDay is a no-op: in-memory writes are visible immediately, so callers
// serialize with their own Locker.
func (r *visitBookingRepository) LockDay(context.Context, string, string) error {
	return nil
}

func (r *visitBookingRepository) ListByEngineerDate(_ context.Context, engineerID, date string) ([]domain.VisitBooking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.VisitBooking
	for _, b := range r.store.bookings {
		if b.EngineerID == engineerID && b.Date == date {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

// Create mirrors the storage exclusion constraint: half-open [start, end) ranges
// of one engineer may not intersect.
func (r *visitBookingRepository) Create(ctx context.Context, booking *domain.VisitBooking) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.EngineerID != booking.EngineerID {
			continue
		}
		if booking.StartTime.Before(b.EndTime) && b.StartTime.Before(booking.EndTime) {
			return apperrors.NewSlotConflict("slot was taken by a concurrent booking", map[string]any{
				"engineer_id": booking.EngineerID,
				"start_time":  booking.StartTime,
			})
		}
	}
	booking.ID = uuid.NewString()
	s.bookings[booking.ID] = *booking
	id := booking.ID
	record(ctx, func() {
		s.mu.Lock()
		delete(s.bookings, id)
		s.mu.Unlock()
	})
	return nil
}

func (r *visitBookingRepository) DeleteByTicket(ctx context.Context, ticketID string) ([]domain.VisitBooking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []domain.VisitBooking
	for id, b := range s.bookings {
		if b.TicketID == ticketID {
			released = append(released, b)
			delete(s.bookings, id)
		}
	}
	restore := append([]domain.VisitBooking(nil), released...)
	record(ctx, func() {
		s.mu.Lock()
		for _, b := range restore {
			s.bookings[b.ID] = b
		}
		s.mu.Unlock()
	})
	return released, nil
}

func (r *visitBookingRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.bookings[id]
	if !ok {
		return nil
	}
	delete(s.bookings, id)
	record(ctx, func() {
		s.mu.Lock()
		s.bookings[prev.ID] = prev
		s.mu.Unlock()
	})
	return nil
}

type teamRepository struct{ store *Store }

func (r *teamRepository) Upsert(_ context.Context, team *domain.Team) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *team
	stored.MemberIDs = append([]string(nil), team.MemberIDs...)
	r.store.teams[team.ID] = stored
	return nil
}

func (r *teamRepository) GetByID(_ context.Context, id string) (*domain.Team, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	team, ok := r.store.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	team.MemberIDs = append([]string(nil), team.MemberIDs...)
	return &team, nil
}

type assignmentLogRepository struct{ store *Store }

func (r *assignmentLogRepository) LastAssigned(_ context.Context, teamID string) (map[string]time.Time, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make(map[string]time.Time, len(r.store.assignLog[teamID]))
	for engineerID, at := range r.store.assignLog[teamID] {
		result[engineerID] = at
	}
	return result, nil
}

func (r *assignmentLogRepository) Touch(ctx context.Context, teamID, engineerID string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignLog[teamID] == nil {
		s.assignLog[teamID] = make(map[string]time.Time)
	}
	prev, existed := s.assignLog[teamID][engineerID]
	s.assignLog[teamID][engineerID] = at
	record(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.assignLog[teamID][engineerID] = prev
		} else {
			delete(s.assignLog[teamID], engineerID)
		}
	})
	return nil
}

type slaPolicyRepository struct{ store *Store }

func (r *slaPolicyRepository) Upsert(_ context.Context, policy *domain.SLAPolicy) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *policy
	stored.BusinessDays = append([]time.Weekday(nil), policy.BusinessDays...)
	r.store.policies[policy.Priority] = stored
	return nil
}

func (r *slaPolicyRepository) ForPriority(_ context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	policy, ok := r.store.policies[priority]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	policy.BusinessDays = append([]time.Weekday(nil), policy.BusinessDays...)
	return &policy, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
