package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/service"
)

// TeamsHandler serves assignment suggestions.
type TeamsHandler struct {
	assignment *service.AssignmentService
}

// NewTeamsHandler constructs handler.
func NewTeamsHandler(assignment *service.AssignmentService) *TeamsHandler {
	return &TeamsHandler{assignment: assignment}
}

// Suggestion GET /teams/:id/suggestion?ticket_id=.
func (h *TeamsHandler) Suggestion(c *fiber.Ctx) error {
	suggestion, err := h.assignment.SuggestForTicket(c.UserContext(), c.Params("id"), c.Query("ticket_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestion})
}
