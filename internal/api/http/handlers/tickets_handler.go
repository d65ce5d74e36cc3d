package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/api/dto"
	"github.com/fieldops/msp-workflow/internal/auth"
	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/service"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// TicketsHandler exposes the ticket state machine.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ExecuteTransition POST /tickets/:id/transitions.
func (h *TicketsHandler) ExecuteTransition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ExecuteTransition(c.UserContext(), actor, c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddTask POST /tickets/:id/tasks.
func (h *TicketsHandler) AddTask(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.AddTask(c.UserContext(), actor, c.Params("id"), service.TaskInput{Name: req.Name, Assignee: req.Assignee})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CompleteTask POST /tickets/:id/tasks/:taskId/complete.
func (h *TicketsHandler) CompleteTask(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.CompleteTask(c.UserContext(), actor, c.Params("id"), c.Params("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SLAStatus GET /tickets/:id/sla.
func (h *TicketsHandler) SLAStatus(c *fiber.Ctx) error {
	status, err := h.service.SLAStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket_id":       status.TicketID,
		"policy_id":       status.PolicyID,
		"policy_name":     status.PolicyName,
		"response":        slaClock(status.Response),
		"resolution":      slaClock(status.Resolution),
		"should_escalate": status.ShouldEscalate,
		"evaluated_at":    status.EvaluatedAt,
	}})
}

func slaClock(clock domain.SLAClock) fiber.Map {
	return fiber.Map{
		"metric":        clock.Metric,
		"target_hours":  clock.Target.Hours(),
		"elapsed_hours": clock.Elapsed.Hours(),
		"breached":      clock.Breached,
		"satisfied":     clock.Satisfied,
	}
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}
