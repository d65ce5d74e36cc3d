package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/config"
	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/persistence"
	"github.com/fieldops/msp-workflow/internal/seed"
)

type harness struct {
	t      *testing.T
	app    *App
	server *fiber.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Name: "msp-workflow", Version: "test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5},
		Scheduling: config.SchedulingConfig{
			Timezone:           "UTC",
			SlotGranularityMin: 30,
			LockBackend:        config.LockBackendLocal,
		},
	}
	a, err := Assemble(cfg, zap.NewNop(), &persistence.Postgres{}, &persistence.Redis{})
	require.NoError(t, err)

	doc, err := seed.LoadFile("../../configs/seed.yaml")
	require.NoError(t, err)
	_, err = seed.NewLoader(a.Repos, a.Workflows, nil).Apply(context.Background(), doc)
	require.NoError(t, err)

	return &harness{t: t, app: a, server: a.HTTP()}
}

func (h *harness) token(actor domain.Actor) string {
	h.t.Helper()
	token, _, err := h.app.Tokens.GenerateToken(actor)
	require.NoError(h.t, err)
	return token
}

func (h *harness) staffToken(role domain.StaffRole) string {
	return h.token(domain.Actor{SubjectID: "staff-1", Name: "Dana Agent", Subject: domain.SubjectTypeStaff, Role: &role})
}

func (h *harness) customerToken() string {
	return h.token(domain.Actor{SubjectID: "cust-1", Name: "Casey Customer", Subject: domain.SubjectTypeUser})
}

func (h *harness) do(method, path, token string, body any) (int, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.server.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func TestHealthRoutesSkipAuth(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = h.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	deps, _ := body["dependencies"].(map[string]any)
	assert.Equal(t, "memory", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodPost, "/api/v1/tickets", "", map[string]any{"workflow_id": "field-service", "subject": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = h.do(http.MethodGet, "/api/v1/workflows", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	agent := h.staffToken(domain.StaffRoleAgent)

	status, body := h.do(http.MethodPost, "/api/v1/tickets", agent, map[string]any{
		"workflow_id":  "field-service",
		"priority":     "HIGH",
		"company_name": "Acme",
		"subject":      "Printer offline",
	})
	require.Equal(t, http.StatusCreated, status, body)
	ticket := data(body)
	ticketID, _ := ticket["id"].(string)
	require.NotEmpty(t, ticketID)
	assert.Equal(t, "new", ticket["current_stage_id"])
	assert.Equal(t, true, ticket["is_open"])

	status, body = h.do(http.MethodPost, "/api/v1/tickets/"+ticketID+"/transitions", agent, map[string]any{
		"transition_id": "assign",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "MISSING_REQUIRED_INPUT", errorCode(body))

	status, body = h.do(http.MethodPost, "/api/v1/tickets/"+ticketID+"/transitions", agent, map[string]any{
		"transition_id":  "assign",
		"assigned_to_id": "eng-alice",
	})
	require.Equal(t, http.StatusOK, status, body)
	ticket = data(body)
	assert.Equal(t, "assigned", ticket["current_stage_id"])
	assert.Equal(t, "eng-alice", ticket["assigned_to_id"])

	status, body = h.do(http.MethodPost, "/api/v1/tickets/"+ticketID+"/transitions", agent, map[string]any{
		"transition_id": "resolve",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = h.do(http.MethodGet, "/api/v1/tickets/"+ticketID, agent, nil)
	require.Equal(t, http.StatusOK, status)
	timeline, _ := data(body)["timeline"].([]any)
	assert.NotEmpty(t, timeline)
}

func TestCustomerCannotTransition(t *testing.T) {
	h := newHarness(t)
	agent := h.staffToken(domain.StaffRoleAgent)

	status, body := h.do(http.MethodPost, "/api/v1/tickets", agent, map[string]any{
		"workflow_id": "field-service",
		"subject":     "Wi-Fi drops",
	})
	require.Equal(t, http.StatusCreated, status, body)
	ticketID, _ := data(body)["id"].(string)

	status, body = h.do(http.MethodPost, "/api/v1/tickets/"+ticketID+"/transitions", h.customerToken(), map[string]any{
		"transition_id": "cancel",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestRequestValidationDetails(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodPost, "/api/v1/tickets", h.staffToken(domain.StaffRoleAgent), map[string]any{
		"workflow_id": "field-service",
		"priority":    "SOMEDAY",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	errBody, _ := body["error"].(map[string]any)
	details, _ := errBody["details"].(map[string]any)
	assert.Contains(t, details, "subject")
	assert.Contains(t, details, "priority")
}

func TestWorkflowWritesNeedLeadRole(t *testing.T) {
	h := newHarness(t)
	wf := map[string]any{
		"id":   "tiny",
		"name": "Tiny",
		"stages": []map[string]any{
			{"id": "open", "slug": "open", "name": "Open", "stage_type": "initial", "order": 1,
				"transitions": []map[string]any{{"id": "close", "to_stage_id": "done", "label": "Close"}}},
			{"id": "done", "slug": "done", "name": "Done", "stage_type": "terminal_success", "order": 2},
		},
	}

	status, body := h.do(http.MethodPost, "/api/v1/workflows", h.staffToken(domain.StaffRoleAgent), wf)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = h.do(http.MethodPost, "/api/v1/workflows", h.staffToken(domain.StaffRoleTeamLead), wf)
	assert.Equal(t, http.StatusCreated, status, body)

	status, _ = h.do(http.MethodGet, "/api/v1/workflows/tiny", h.staffToken(domain.StaffRoleAgent), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSlotsEndpoint(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodGet, "/api/v1/engineers/eng-alice/slots", h.staffToken(domain.StaffRoleAgent), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = h.do(http.MethodGet, "/api/v1/engineers/eng-alice/slots?date=2030-01-07", h.staffToken(domain.StaffRoleAgent), nil)
	assert.Equal(t, http.StatusOK, status, body)
}
