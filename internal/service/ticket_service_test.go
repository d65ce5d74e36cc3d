package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/events"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 10, hour, minute, 0, 0, time.UTC)
}

func TestCreateTicketStartsInInitialStage(t *testing.T) {
	env := newTestEnv(t)

	ticket := env.createTicket(t)

	assert.Equal(t, "TCK-000001", ticket.TicketNumber)
	assert.Equal(t, "new", ticket.CurrentStageID)
	assert.True(t, ticket.IsOpen)
	assert.Equal(t, fixedNow, ticket.StageEnteredAt)
	require.Len(t, ticket.Timeline, 1)
	assert.Equal(t, domain.TimelineTicketCreated, ticket.Timeline[0].Type)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, env.dispatcher.types())

	second := env.createTicket(t)
	assert.Equal(t, "TCK-000002", second.TicketNumber)
}

func TestCreateTicketRejectsUnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tickets.CreateTicket(context.Background(), staffActor(), TicketCreateInput{WorkflowID: "missing", Subject: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.tickets.CreateTicket(context.Background(), staffActor(), TicketCreateInput{WorkflowID: testWorkflowID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAssignEngineerTransition(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t)

	ticket = env.assign(t, ticket.ID, testEngineerA)

	assert.Equal(t, "assigned", ticket.CurrentStageID)
	require.NotNil(t, ticket.AssignedToID)
	assert.Equal(t, testEngineerA, *ticket.AssignedToID)
	assert.Equal(t, "Alice", ticket.AssignedToName)
	require.NotNil(t, ticket.FirstRespondedAt)
	assert.Equal(t, 2, ticket.Version)

	require.Len(t, ticket.Timeline, 2)
	assert.Equal(t, domain.TimelineStageChange, ticket.Timeline[1].Type)
	assert.Equal(t, "Moved to Assigned", ticket.Timeline[1].Description)
	assert.Equal(t, "Dana Agent", ticket.Timeline[1].UserName)

	assert.Equal(t, []events.EventType{
		events.EventTicketCreated, events.EventTicketTransitioned, events.EventTicketAssigned,
	}, env.dispatcher.types())

	suggestion, err := env.assignment.SuggestAssignee(context.Background(), testTeamID, ticket)
	require.NoError(t, err)
	require.NotNil(t, suggestion.EngineerID)
	assert.Equal(t, testEngineerB, *suggestion.EngineerID)
}

func TestFullLifecycleToResolved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerA)

	ticket, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID:   "schedule",
		ScheduledAt:    timePtr(at(10, 0)),
		ScheduledEndAt: timePtr(at(11, 0)),
		ScheduleNotes:  "bring ladder",
	})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", ticket.CurrentStageID)
	require.NotNil(t, ticket.ScheduledAt)
	assert.True(t, ticket.ScheduledAt.Equal(at(10, 0)))
	assert.Equal(t, "bring ladder", ticket.ScheduleNotes)

	report, err := env.scheduling.GetAvailableSlots(ctx, testEngineerA, "2024-01-10")
	require.NoError(t, err)
	require.Len(t, report.Bookings, 1)
	assert.Equal(t, ticket.TicketNumber, report.Bookings[0].TicketNumber)

	ticket, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID:    "resolve",
		ResolutionNotes: "replaced fuser",
	})
	require.NoError(t, err)
	assert.Equal(t, "resolved", ticket.CurrentStageID)
	assert.False(t, ticket.IsOpen)
	assert.Equal(t, "replaced fuser", ticket.ResolutionNotes)
	require.NotNil(t, ticket.ResolvedAt)
	require.NotNil(t, ticket.ClosedAt)
	assert.Len(t, ticket.Timeline, 4)
}

func TestClosedTicketRejectsTransitionsBeforeLookup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	ticket, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "cancel"})
	require.NoError(t, err)
	assert.False(t, ticket.IsOpen)
	assert.Nil(t, ticket.ResolvedAt)
	assert.NotNil(t, ticket.ClosedAt)

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "does-not-exist"})
	assert.ErrorIs(t, err, apperrors.ErrTicketClosed)

	_, err = env.tickets.AddTask(ctx, staffActor(), ticket.ID, TaskInput{Name: "follow up"})
	assert.ErrorIs(t, err, apperrors.ErrTicketClosed)

	ticket, err = env.tickets.AddComment(ctx, staffActor(), ticket.ID, "closing note", false)
	require.NoError(t, err)
	assert.Equal(t, domain.TimelineComment, ticket.Timeline[len(ticket.Timeline)-1].Type)
}

func TestInvalidTransitionFromCurrentStage(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t)

	_, err := env.tickets.ExecuteTransition(context.Background(), staffActor(), ticket.ID, TransitionInput{
		TransitionID:    "resolve",
		ResolutionNotes: "done",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestGateInputRequirements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	_, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "assign"})
	require.ErrorIs(t, err, apperrors.ErrMissingRequiredInput)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "assign_engineer", de.Details["requires_input"])
	assert.Equal(t, []string{"assigned_to_id"}, de.Details["fields"])

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID: "assign",
		AssignedToID: strPtr("eng-ghost"),
	})
	assert.ErrorIs(t, err, apperrors.ErrUnknownEngineer)

	env.assign(t, ticket.ID, testEngineerA)

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "schedule"})
	require.ErrorIs(t, err, apperrors.ErrMissingRequiredInput)
	assert.Equal(t, []string{"scheduled_at", "scheduled_end_at"}, apperrors.ToDomainError(err).Details["fields"])

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "diagnose", DiagnosisFindings: "  "})
	assert.ErrorIs(t, err, apperrors.ErrMissingRequiredInput)

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID: "order-parts",
		PartsList:    []domain.Part{{Name: " ", Quantity: 2}},
	})
	assert.ErrorIs(t, err, apperrors.ErrMissingRequiredInput)

	stored, err := env.tickets.GetTicket(ctx, staffActor(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "assigned", stored.CurrentStageID)
	assert.Len(t, stored.Timeline, 2)
}

func TestScheduleVisitTakesEngineerFromPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerA)

	ticket, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID:   "schedule",
		AssignedToID:   strPtr(testEngineerB),
		ScheduledAt:    timePtr(at(13, 0)),
		ScheduledEndAt: timePtr(at(14, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, testEngineerB, *ticket.AssignedToID)

	report, err := env.scheduling.GetAvailableSlots(ctx, testEngineerB, "2024-01-10")
	require.NoError(t, err)
	assert.Len(t, report.Bookings, 1)
}

func TestScheduleConflictLeavesTicketUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createTicket(t)
	second := env.createTicket(t)
	env.assign(t, first.ID, testEngineerA)
	before := env.assign(t, second.ID, testEngineerA)

	_, err := env.tickets.ExecuteTransition(ctx, staffActor(), first.ID, TransitionInput{
		TransitionID:   "schedule",
		ScheduledAt:    timePtr(at(10, 0)),
		ScheduledEndAt: timePtr(at(11, 0)),
	})
	require.NoError(t, err)

	_, err = env.tickets.ExecuteTransition(ctx, staffActor(), second.ID, TransitionInput{
		TransitionID:   "schedule",
		ScheduledAt:    timePtr(at(10, 30)),
		ScheduledEndAt: timePtr(at(11, 30)),
	})
	require.ErrorIs(t, err, apperrors.ErrSlotConflict)
	assert.Equal(t, first.TicketNumber, apperrors.ToDomainError(err).Details["blocked_by"])

	after, err := env.tickets.GetTicket(ctx, staffActor(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "assigned", after.CurrentStageID)
	assert.Equal(t, before.Version, after.Version)
	assert.Nil(t, after.ScheduledAt)
	assert.Len(t, after.Timeline, len(before.Timeline))
}

func TestConcurrentSchedulingOfTwoTicketsOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tickets := []*domain.Ticket{env.createTicket(t), env.createTicket(t)}
	for _, ticket := range tickets {
		env.assign(t, ticket.ID, testEngineerA)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(tickets))
	for i, ticket := range tickets {
		wg.Add(1)
		go func(i int, ticketID string) {
			defer wg.Done()
			_, errs[i] = env.tickets.ExecuteTransition(ctx, staffActor(), ticketID, TransitionInput{
				TransitionID:   "schedule",
				ScheduledAt:    timePtr(at(10, 0)),
				ScheduledEndAt: timePtr(at(11, 0)),
			})
		}(i, ticket.ID)
	}
	wg.Wait()

	scheduled := 0
	for i, ticket := range tickets {
		after, err := env.tickets.GetTicket(ctx, staffActor(), ticket.ID)
		require.NoError(t, err)
		if errs[i] == nil {
			scheduled++
			assert.Equal(t, "scheduled", after.CurrentStageID)
			require.NotNil(t, after.ScheduledAt)
			assert.True(t, after.ScheduledAt.Equal(at(10, 0)))
			continue
		}
		assert.ErrorIs(t, errs[i], apperrors.ErrSlotConflict)
		assert.Equal(t, "assigned", after.CurrentStageID)
		assert.Nil(t, after.ScheduledAt)
	}
	assert.Equal(t, 1, scheduled)

	report, err := env.scheduling.GetAvailableSlots(ctx, testEngineerA, "2024-01-10")
	require.NoError(t, err)
	assert.Len(t, report.Bookings, 1)
}

func TestRescheduleReleasesPreviousBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerA)

	_, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID:   "schedule",
		ScheduledAt:    timePtr(at(10, 0)),
		ScheduledEndAt: timePtr(at(11, 0)),
	})
	require.NoError(t, err)

	// Adjacent to the ticket's own booking: only valid because it is released first.
	ticket, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID:   "reschedule",
		ScheduledAt:    timePtr(at(10, 30)),
		ScheduledEndAt: timePtr(at(11, 30)),
	})
	require.NoError(t, err)
	assert.True(t, ticket.ScheduledAt.Equal(at(10, 30)))

	report, err := env.scheduling.GetAvailableSlots(ctx, testEngineerA, "2024-01-10")
	require.NoError(t, err)
	require.Len(t, report.Bookings, 1)
	assert.Equal(t, "10:30", report.Bookings[0].Time)
}

func TestFailedRescheduleRestoresReleasedBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createTicket(t)
	second := env.createTicket(t)
	env.assign(t, first.ID, testEngineerA)
	env.assign(t, second.ID, testEngineerA)

	for _, step := range []struct {
		id    string
		start time.Time
	}{{first.ID, at(10, 0)}, {second.ID, at(14, 0)}} {
		_, err := env.tickets.ExecuteTransition(ctx, staffActor(), step.id, TransitionInput{
			TransitionID:   "schedule",
			ScheduledAt:    timePtr(step.start),
			ScheduledEndAt: timePtr(step.start.Add(time.Hour)),
		})
		require.NoError(t, err)
	}

	_, err := env.tickets.ExecuteTransition(ctx, staffActor(), first.ID, TransitionInput{
		TransitionID:   "reschedule",
		ScheduledAt:    timePtr(at(14, 30)),
		ScheduledEndAt: timePtr(at(15, 30)),
	})
	require.ErrorIs(t, err, apperrors.ErrSlotConflict)

	report, err := env.scheduling.GetAvailableSlots(ctx, testEngineerA, "2024-01-10")
	require.NoError(t, err)
	times := make([]string, 0, len(report.Bookings))
	for _, b := range report.Bookings {
		times = append(times, b.Time)
	}
	assert.Equal(t, []string{"10:00", "14:00"}, times)
}

func TestStageTeamReroutesAfterGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerA)

	ticket, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
		TransitionID: "order-parts",
		PartsList:    []domain.Part{{Name: "fuser unit"}, {Name: ""}},
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.AssignedTeamID)
	assert.Equal(t, "team-procurement", *ticket.AssignedTeamID)
	assert.Equal(t, []domain.Part{{Name: "fuser unit", Quantity: 1}}, ticket.PartsRequired)

	last := ticket.Timeline[len(ticket.Timeline)-2:]
	assert.Equal(t, "Moved to Waiting for parts", last[0].Description)
	assert.Equal(t, domain.TimelineAssignment, last[1].Type)
	assert.Equal(t, "Assigned to team Procurement", last[1].Description)

	types := env.dispatcher.types()
	assert.Equal(t, events.EventTicketAssigned, types[len(types)-1])

	ticket, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "quote", Notes: "EUR 120"})
	require.NoError(t, err)
	assert.Equal(t, "EUR 120", ticket.QuotationNotes)
	assert.Equal(t, "team-procurement", *ticket.AssignedTeamID)
}

func TestDiagnosisOverwritesEarlierFindings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerA)

	for _, findings := range []string{"toner empty", "fuser failed"} {
		var err error
		ticket, err = env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{
			TransitionID:      "diagnose",
			DiagnosisFindings: findings,
		})
		require.NoError(t, err)
	}

	require.NotNil(t, ticket.Diagnosis)
	assert.Equal(t, "fuser failed", ticket.Diagnosis.Findings)
	assert.Equal(t, "Dana Agent", ticket.Diagnosis.DiagnosedBy)
	assert.Equal(t, "assigned", ticket.CurrentStageID)
}

func TestConcurrentTransitionsOnOneTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.tickets.ExecuteTransition(context.Background(), staffActor(), ticket.ID, TransitionInput{
				TransitionID: "assign",
				AssignedToID: strPtr(testEngineerA),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := env.tickets.GetTicket(context.Background(), staffActor(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Timeline, 2)
}

func TestCustomersSeePublicTimelineOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	_, err := env.tickets.AddComment(ctx, staffActor(), ticket.ID, "internal triage", true)
	require.NoError(t, err)
	_, err = env.tickets.AddComment(ctx, customerActor(), ticket.ID, "any update?", false)
	require.NoError(t, err)
	_, err = env.tickets.AddComment(ctx, customerActor(), ticket.ID, "any update?", false)
	require.NoError(t, err)

	_, err = env.tickets.AddComment(ctx, customerActor(), ticket.ID, "sneaky", true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = env.tickets.AddComment(ctx, customerActor(), ticket.ID, "   ", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	staffView, err := env.tickets.GetTicket(ctx, staffActor(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, staffView.Timeline, 4)

	customerView, err := env.tickets.ListTimeline(ctx, customerActor(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, customerView, 3)
	for _, entry := range customerView {
		assert.False(t, entry.IsInternal)
	}

	_, err = env.tickets.ExecuteTransition(ctx, customerActor(), ticket.ID, TransitionInput{TransitionID: "cancel"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestTasksLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	ticket, err := env.tickets.AddTask(ctx, staffActor(), ticket.ID, TaskInput{Name: "Check cabling", Assignee: "Alice"})
	require.NoError(t, err)
	require.Len(t, ticket.Tasks, 1)
	task := ticket.Tasks[0]
	assert.Equal(t, domain.TaskStatusPending, task.Status)

	ticket, err = env.tickets.CompleteTask(ctx, staffActor(), ticket.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, ticket.Tasks[0].Status)
	require.NotNil(t, ticket.Tasks[0].CompletedAt)
	last := ticket.Timeline[len(ticket.Timeline)-1]
	assert.Equal(t, domain.TimelineTaskCompleted, last.Type)
	assert.Equal(t, "Completed task Check cabling", last.Description)

	_, err = env.tickets.CompleteTask(ctx, staffActor(), ticket.ID, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = env.tickets.CompleteTask(ctx, staffActor(), ticket.ID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSLAStatusUsesPriorityPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	_, err := env.tickets.SLAStatus(ctx, ticket.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, env.repos.SLAPolicies.Upsert(ctx, &domain.SLAPolicy{
		ID:                  "sla-high",
		Name:                "High",
		Priority:            domain.TicketPriorityHigh,
		ResponseTimeHours:   1,
		ResolutionTimeHours: 8,
		Timezone:            "UTC",
	}))

	status, err := env.tickets.SLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "sla-high", status.PolicyID)
	assert.Equal(t, ticket.ID, status.TicketID)
	assert.False(t, status.Response.Breached)
	assert.False(t, status.Resolution.Breached)
}

func TestSLAStatusOfCancelledTicketStopsAtClosure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.repos.SLAPolicies.Upsert(ctx, &domain.SLAPolicy{
		ID:                  "sla-high",
		Name:                "High",
		Priority:            domain.TicketPriorityHigh,
		ResponseTimeHours:   1,
		ResolutionTimeHours: 4,
		Timezone:            "UTC",
	}))
	ticket := env.createTicket(t)

	cancelled, err := env.tickets.ExecuteTransition(ctx, staffActor(), ticket.ID, TransitionInput{TransitionID: "cancel"})
	require.NoError(t, err)
	require.False(t, cancelled.IsOpen)
	require.Nil(t, cancelled.ResolvedAt)

	env.tickets.now = func() time.Time { return fixedNow.Add(72 * time.Hour) }
	status, err := env.tickets.SLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Zero(t, status.Resolution.Elapsed)
	assert.False(t, status.Resolution.Breached)
	assert.False(t, status.Resolution.Satisfied)
	assert.False(t, status.ShouldEscalate)
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t)
	env.dispatcher.err = errors.New("broker down")

	ticket = env.assign(t, ticket.ID, testEngineerA)
	assert.Equal(t, "assigned", ticket.CurrentStageID)
}
