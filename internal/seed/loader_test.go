package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/repository"
	"github.com/fieldops/msp-workflow/internal/repository/memory"
	"github.com/fieldops/msp-workflow/internal/service"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

func newLoader() (*Loader, repository.Repositories) {
	repos := memory.NewStore().Repositories()
	workflows := service.NewWorkflowService(service.WorkflowDependencies{
		WorkflowRepo: repos.Workflows,
		TicketRepo:   repos.Tickets,
		Transactor:   repos.Transactor,
	})
	return NewLoader(repos, workflows, nil), repos
}

func TestApplyBundledSeed(t *testing.T) {
	ctx := context.Background()
	doc, err := LoadFile("../../configs/seed.yaml")
	require.NoError(t, err)

	loader, repos := newLoader()
	summary, err := loader.Apply(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, Summary{Workflows: 1, Engineers: 2, Teams: 2, SLAPolicies: 4}, summary)

	bob, err := repos.Engineers.GetByID(ctx, "eng-bob")
	require.NoError(t, err)
	friday, ok := bob.HoursOn(time.Friday)
	require.True(t, ok)
	assert.Equal(t, "12:00", friday.End.String())
	assert.True(t, bob.IsHoliday("2024-12-25"))

	wf, err := repos.Workflows.GetByID(ctx, "field-service")
	require.NoError(t, err)
	initial, ok := wf.InitialStage()
	require.True(t, ok)
	cancel, ok := initial.Transition("cancel")
	require.True(t, ok)
	assert.Equal(t, domain.GateNone, cancel.RequiresInput)

	policy, err := repos.SLAPolicies.ForPriority(ctx, domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.True(t, policy.ResolutionBusinessHours)
	assert.Len(t, policy.BusinessDays, 5)
}

func TestApplyTwiceUpdatesWorkflow(t *testing.T) {
	ctx := context.Background()
	doc, err := LoadFile("../../configs/seed.yaml")
	require.NoError(t, err)

	loader, repos := newLoader()
	_, err = loader.Apply(ctx, doc)
	require.NoError(t, err)
	_, err = loader.Apply(ctx, doc)
	require.NoError(t, err)

	list, err := repos.Workflows.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApplyRejectsUnknownTeamMember(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
teams:
  - id: team-x
    name: X
    assignment_mode: round_robin
    members: [eng-ghost]
`))
	require.NoError(t, err)

	loader, _ := newLoader()
	_, err = loader.Apply(context.Background(), doc)
	assert.ErrorIs(t, err, apperrors.ErrUnknownEngineer)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("engineers:\n  - id: e1\n    shift: night\n"))
	assert.Error(t, err)
}

func TestApplyRejectsBadWorkingHours(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
engineers:
  - id: e1
    name: E
    working_hours:
      - days: [mon]
        start: "17:00"
        end: "09:00"
`))
	require.NoError(t, err)

	loader, _ := newLoader()
	_, err = loader.Apply(context.Background(), doc)
	assert.ErrorContains(t, err, "not after start")
}
