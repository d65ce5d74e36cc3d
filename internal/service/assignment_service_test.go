package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

func addMember(t *testing.T, env *testEnv, id, name string) {
	t.Helper()
	require.NoError(t, env.repos.Engineers.Upsert(context.Background(), &domain.Engineer{
		ID: id, Name: name, WorkingHours: weekdayHours("09:00", "17:00"),
	}))
}

func setMode(t *testing.T, env *testEnv, mode domain.AssignmentMode, members ...string) {
	t.Helper()
	require.NoError(t, env.repos.Teams.Upsert(context.Background(), &domain.Team{
		ID: testTeamID, Name: "Field", AssignmentMode: mode, MemberIDs: members,
	}))
}

func TestRoundRobinPrefersNeverAssignedThenOldest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	addMember(t, env, "eng-carol", "Carol")
	setMode(t, env, domain.AssignmentRoundRobin, testEngineerA, testEngineerB, "eng-carol")

	suggestion, err := env.assignment.SuggestAssignee(ctx, testTeamID, nil)
	require.NoError(t, err)
	assert.Equal(t, testEngineerA, *suggestion.EngineerID)

	require.NoError(t, env.assignment.RecordAssignment(ctx, testTeamID, testEngineerA, fixedNow))
	require.NoError(t, env.assignment.RecordAssignment(ctx, testTeamID, testEngineerB, fixedNow.Add(-time.Hour)))

	suggestion, err = env.assignment.SuggestAssignee(ctx, testTeamID, nil)
	require.NoError(t, err)
	assert.Equal(t, "eng-carol", *suggestion.EngineerID)
	assert.Equal(t, "Carol", suggestion.EngineerName)

	require.NoError(t, env.assignment.RecordAssignment(ctx, testTeamID, "eng-carol", fixedNow.Add(time.Hour)))
	suggestion, err = env.assignment.SuggestAssignee(ctx, testTeamID, nil)
	require.NoError(t, err)
	assert.Equal(t, testEngineerB, *suggestion.EngineerID)
}

func TestLoadBalancedPicksFewestOpenTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setMode(t, env, domain.AssignmentLoadBalanced, testEngineerA, testEngineerB)

	for i := 0; i < 2; i++ {
		ticket := env.createTicket(t)
		env.assign(t, ticket.ID, testEngineerA)
	}
	ticket := env.createTicket(t)
	env.assign(t, ticket.ID, testEngineerB)

	suggestion, err := env.assignment.SuggestAssignee(ctx, testTeamID, nil)
	require.NoError(t, err)
	require.NotNil(t, suggestion.EngineerID)
	assert.Equal(t, testEngineerB, *suggestion.EngineerID)
	require.Len(t, suggestion.Candidates, 2)
	assert.Equal(t, 1, suggestion.Candidates[0].OpenTickets)
	assert.Equal(t, 2, suggestion.Candidates[1].OpenTickets)
}

func TestLoadBalancedTieFallsBackToRoundRobin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setMode(t, env, domain.AssignmentLoadBalanced, testEngineerA, testEngineerB)
	require.NoError(t, env.assignment.RecordAssignment(ctx, testTeamID, testEngineerA, fixedNow))

	suggestion, err := env.assignment.SuggestAssignee(ctx, testTeamID, nil)
	require.NoError(t, err)
	assert.Equal(t, testEngineerB, *suggestion.EngineerID)
}

func TestManualModeListsCandidatesWithContinuity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setMode(t, env, domain.AssignmentManual, testEngineerA, testEngineerB)

	previous := env.createTicket(t)
	env.assign(t, previous.ID, testEngineerA)
	current := env.createTicket(t)

	suggestion, err := env.assignment.SuggestForTicket(ctx, testTeamID, current.ID)
	require.NoError(t, err)
	assert.Nil(t, suggestion.EngineerID)
	require.Len(t, suggestion.Candidates, 2)

	byID := map[string]AssigneeCandidate{}
	for _, c := range suggestion.Candidates {
		byID[c.EngineerID] = c
	}
	alice := byID[testEngineerA]
	require.NotNil(t, alice.LastTicket)
	assert.Equal(t, previous.TicketNumber, alice.LastTicket.TicketNumber)
	assert.True(t, alice.SameCompany)
	assert.False(t, byID[testEngineerB].SameCompany)
}

func TestSuggestionErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.assignment.SuggestAssignee(ctx, "team-ghost", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.assignment.SuggestForTicket(ctx, testTeamID, "ticket-ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	suggestion, err := env.assignment.SuggestAssignee(ctx, "team-procurement", nil)
	require.NoError(t, err)
	assert.Nil(t, suggestion.EngineerID)
	assert.Empty(t, suggestion.Candidates)
}
