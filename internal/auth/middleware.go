package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/domain"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens. Identity is owned by the external
// auth service, so the actor is taken from the verified claims as-is.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor := claims.Actor()
	switch actor.Subject {
	case domain.SubjectTypeUser:
		actor.Role = nil
	case domain.SubjectTypeStaff:
		if actor.Role == nil || !actor.Role.Valid() {
			return apperrors.NewUnauthorized("staff token without a valid role")
		}
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated caller.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
