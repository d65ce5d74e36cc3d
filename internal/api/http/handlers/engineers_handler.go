package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/service"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// EngineersHandler serves engineer availability.
type EngineersHandler struct {
	scheduling *service.SchedulingService
}

// NewEngineersHandler constructs handler.
func NewEngineersHandler(scheduling *service.SchedulingService) *EngineersHandler {
	return &EngineersHandler{scheduling: scheduling}
}

// Slots GET /engineers/:id/slots?date=YYYY-MM-DD.
func (h *EngineersHandler) Slots(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		return apperrors.NewValidationError("date query parameter required", nil)
	}
	report, err := h.scheduling.GetAvailableSlots(c.UserContext(), c.Params("id"), date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
