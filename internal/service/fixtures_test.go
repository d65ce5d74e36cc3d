package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/events"
	"github.com/fieldops/msp-workflow/internal/observability"
	"github.com/fieldops/msp-workflow/internal/persistence"
	"github.com/fieldops/msp-workflow/internal/repository"
	"github.com/fieldops/msp-workflow/internal/repository/memory"
)

const (
	testWorkflowID = "wf-field-service"
	testTeamID     = "team-field"
	testEngineerA  = "eng-alice"
	testEngineerB  = "eng-bob"
)

// fixedNow is Wednesday 2024-01-10 08:00 UTC.
var fixedNow = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

func staffActor() domain.Actor {
	role := domain.StaffRoleAgent
	return domain.Actor{SubjectID: "staff-1", Name: "Dana Agent", Subject: domain.SubjectTypeStaff, Role: &role}
}

func customerActor() domain.Actor {
	return domain.Actor{SubjectID: "user-1", Name: "Casey Customer", Subject: domain.SubjectTypeUser}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// fieldServiceWorkflow is New -> Assigned -> Scheduled -> Resolved with a
// cancellation path and a diagnosis loop.
func fieldServiceWorkflow() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   testWorkflowID,
		Name: "Field service",
		Stages: []domain.Stage{
			{ID: "new", Slug: "new", Name: "New", Type: domain.StageTypeInitial, Order: 1, Transitions: []domain.Transition{
				{ID: "assign", ToStageID: "assigned", Label: "Assign", RequiresInput: domain.GateAssignEngineer},
				{ID: "cancel", ToStageID: "cancelled", Label: "Cancel", RequiresInput: domain.GateNone},
			}},
			{ID: "assigned", Slug: "assigned", Name: "Assigned", Type: domain.StageTypeInProgress, Order: 2, Transitions: []domain.Transition{
				{ID: "schedule", ToStageID: "scheduled", Label: "Schedule visit", RequiresInput: domain.GateScheduleVisit},
				{ID: "diagnose", ToStageID: "assigned", Label: "Diagnose", RequiresInput: domain.GateDiagnosis},
				{ID: "order-parts", ToStageID: "waiting-parts", Label: "Order parts", RequiresInput: domain.GatePartsList},
			}},
			{ID: "waiting-parts", Slug: "waiting-parts", Name: "Waiting for parts", Type: domain.StageTypeWaiting, Order: 3,
				AssignedTeamID: strPtr("team-procurement"),
				Transitions: []domain.Transition{
					{ID: "quote", ToStageID: "assigned", Label: "Quote", RequiresInput: domain.GateQuotation},
				}},
			{ID: "scheduled", Slug: "scheduled", Name: "Scheduled", Type: domain.StageTypeInProgress, Order: 4, Transitions: []domain.Transition{
				{ID: "reschedule", ToStageID: "scheduled", Label: "Reschedule", RequiresInput: domain.GateScheduleVisit},
				{ID: "resolve", ToStageID: "resolved", Label: "Resolve", RequiresInput: domain.GateResolution},
			}},
			{ID: "resolved", Slug: "resolved", Name: "Resolved", Type: domain.StageTypeTerminalSuccess, Order: 5},
			{ID: "cancelled", Slug: "cancelled", Name: "Cancelled", Type: domain.StageTypeTerminalFailure, Order: 6},
		},
	}
}

func weekdayHours(start, end string) []domain.WorkingHours {
	var hours []domain.WorkingHours
	for d := time.Monday; d <= time.Friday; d++ {
		hours = append(hours, domain.WorkingHours{Weekday: d, Start: domain.MustClockTime(start), End: domain.MustClockTime(end)})
	}
	return hours
}

type testEnv struct {
	repos      repository.Repositories
	metrics    *observability.Metrics
	dispatcher *recordingDispatcher
	scheduling *SchedulingService
	assignment *AssignmentService
	workflows  *WorkflowService
	tickets    *TicketService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	metrics := observability.NewMetrics()
	dispatcher := &recordingDispatcher{}
	locker := persistence.NewKeyedMutex()
	now := func() time.Time { return fixedNow }

	env := &testEnv{repos: repos, metrics: metrics, dispatcher: dispatcher}
	env.scheduling = NewSchedulingService(SchedulingDependencies{
		EngineerRepo:     repos.Engineers,
		VisitBookingRepo: repos.VisitBookings,
		Transactor:       repos.Transactor,
		Locker:           locker,
		Location:         time.UTC,
		Granularity:      30 * time.Minute,
		Metrics:          metrics,
		Logger:           zap.NewNop(),
		Now:              now,
	})
	env.assignment = NewAssignmentService(AssignmentDependencies{
		TicketRepo:        repos.Tickets,
		EngineerRepo:      repos.Engineers,
		TeamRepo:          repos.Teams,
		AssignmentLogRepo: repos.AssignmentLog,
	})
	env.workflows = NewWorkflowService(WorkflowDependencies{
		WorkflowRepo: repos.Workflows,
		TicketRepo:   repos.Tickets,
		Transactor:   repos.Transactor,
	})
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:        repos.Tickets,
		TimelineRepo:      repos.Timeline,
		WorkflowRepo:      repos.Workflows,
		EngineerRepo:      repos.Engineers,
		TeamRepo:          repos.Teams,
		SLAPolicyRepo:     repos.SLAPolicies,
		Transactor:        repos.Transactor,
		Locker:            locker,
		Scheduling:        env.scheduling,
		AssignmentService: env.assignment,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            zap.NewNop(),
		Now:               now,
	})

	_, err := env.workflows.CreateWorkflow(ctx, fieldServiceWorkflow())
	require.NoError(t, err)
	for _, e := range []domain.Engineer{
		{ID: testEngineerA, Name: "Alice", Specialization: "network", WorkingHours: weekdayHours("09:00", "17:00")},
		{ID: testEngineerB, Name: "Bob", Specialization: "hardware", WorkingHours: weekdayHours("09:00", "17:00"), Holidays: []string{"2024-01-12"}},
	} {
		e := e
		require.NoError(t, repos.Engineers.Upsert(ctx, &e))
	}
	require.NoError(t, repos.Teams.Upsert(ctx, &domain.Team{
		ID: testTeamID, Name: "Field", AssignmentMode: domain.AssignmentRoundRobin, MemberIDs: []string{testEngineerA, testEngineerB},
	}))
	require.NoError(t, repos.Teams.Upsert(ctx, &domain.Team{
		ID: "team-procurement", Name: "Procurement", AssignmentMode: domain.AssignmentManual,
	}))
	return env
}

func (e *testEnv) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.CreateTicket(context.Background(), staffActor(), TicketCreateInput{
		WorkflowID:     testWorkflowID,
		Priority:       domain.TicketPriorityHigh,
		CompanyID:      "acme",
		CompanyName:    "Acme Corp",
		Subject:        "Printer offline",
		AssignedTeamID: strPtr(testTeamID),
	})
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) assign(t *testing.T, ticketID, engineerID string) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.ExecuteTransition(context.Background(), staffActor(), ticketID, TransitionInput{
		TransitionID: "assign",
		AssignedToID: strPtr(engineerID),
	})
	require.NoError(t, err)
	return ticket
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
	err       error
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return d.err
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}
