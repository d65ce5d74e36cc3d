package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

func staff(role domain.StaffRole) domain.Actor {
	return domain.Actor{SubjectID: "staff-7", Name: "Dana Agent", Subject: domain.SubjectTypeStaff, Role: &role}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	token, expiresAt, err := tm.GenerateToken(staff(domain.StaffRoleTeamLead))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	actor := claims.Actor()
	assert.Equal(t, "staff-7", actor.SubjectID)
	assert.Equal(t, "Dana Agent", actor.Name)
	assert.Equal(t, domain.SubjectTypeStaff, actor.Subject)
	require.NotNil(t, actor.Role)
	assert.Equal(t, domain.StaffRoleTeamLead, *actor.Role)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	token, _, err := tm.GenerateToken(staff(domain.StaffRoleAgent))
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other", 15).ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewTokenManager("secret", 15)
		late.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err := late.ParseToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing subject", func(t *testing.T) {
		anon, _, err := tm.GenerateToken(domain.Actor{Subject: domain.SubjectTypeUser})
		require.NoError(t, err)
		_, err = tm.ParseToken(anon)
		assert.Error(t, err)
	})
}

func newProtectedApp(tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.SendString(actor.DisplayName())
	})
	app.Get("/", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	app := newProtectedApp(tm)

	status, body := call(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	staffToken, _, err := tm.GenerateToken(staff(domain.StaffRoleAgent))
	require.NoError(t, err)
	status, body = call(t, app, staffToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Dana Agent", body)

	roleless, _, err := tm.GenerateToken(domain.Actor{SubjectID: "s-1", Subject: domain.SubjectTypeStaff})
	require.NoError(t, err)
	status, _ = call(t, app, roleless)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRoleGuards(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	leadsOnly := newProtectedApp(tm, RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin))
	anyStaff := newProtectedApp(tm, RequireStaffRole())

	agent, _, err := tm.GenerateToken(staff(domain.StaffRoleAgent))
	require.NoError(t, err)
	admin, _, err := tm.GenerateToken(staff(domain.StaffRoleAdmin))
	require.NoError(t, err)
	smuggled := domain.StaffRoleAdmin
	customer, _, err := tm.GenerateToken(domain.Actor{SubjectID: "cust-1", Subject: domain.SubjectTypeUser, Role: &smuggled})
	require.NoError(t, err)

	status, body := call(t, leadsOnly, agent)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body)

	status, _ = call(t, leadsOnly, admin)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, anyStaff, agent)
	assert.Equal(t, http.StatusOK, status)

	// A customer token cannot smuggle in a staff role.
	status, _ = call(t, anyStaff, customer)
	assert.Equal(t, http.StatusForbidden, status)
}
