// Package memory holds map-backed repositories used when no database is
// configured and in tests. Writes made inside WithinTx are journaled and undone
// when the unit of work fails.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
)

// Store is the shared state behind every in-memory repository.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]domain.WorkflowDefinition
	tickets   map[string]domain.Ticket
	ticketSeq int64
	timeline  map[string][]domain.TimelineEntry
	engineers map[string]domain.Engineer
	bookings  map[string]domain.VisitBooking
	teams     map[string]domain.Team
	assignLog map[string]map[string]time.Time
	policies  map[domain.TicketPriority]domain.SLAPolicy
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		workflows: make(map[string]domain.WorkflowDefinition),
		tickets:   make(map[string]domain.Ticket),
		timeline:  make(map[string][]domain.TimelineEntry),
		engineers: make(map[string]domain.Engineer),
		bookings:  make(map[string]domain.VisitBooking),
		teams:     make(map[string]domain.Team),
		assignLog: make(map[string]map[string]time.Time),
		policies:  make(map[domain.TicketPriority]domain.SLAPolicy),
	}
}

// Repositories returns every repository view over s.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Transactor:    Transactor{},
		Workflows:     &workflowRepository{store: s},
		Tickets:       &ticketRepository{store: s},
		Timeline:      &timelineRepository{store: s},
		Engineers:     &engineerRepository{store: s},
		VisitBookings: &visitBookingRepository{store: s},
		Teams:         &teamRepository{store: s},
		AssignmentLog: &assignmentLogRepository{store: s},
		SLAPolicies:   &slaPolicyRepository{store: s},
	}
}

type journalKey struct{}

type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) add(fn func()) {
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Transactor gives all-or-nothing semantics by undoing journaled writes.
type Transactor struct{}

func (Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// record registers an undo step when ctx is inside a unit of work. Undo steps
// run without the store lock held by the caller.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.add(undo)
	}
}
