package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/api/dto"
	"github.com/fieldops/msp-workflow/internal/service"
)

// WorkflowsHandler exposes the workflow definition store.
type WorkflowsHandler struct {
	service *service.WorkflowService
}

// NewWorkflowsHandler constructs handler.
func NewWorkflowsHandler(workflowService *service.WorkflowService) *WorkflowsHandler {
	return &WorkflowsHandler{service: workflowService}
}

// List GET /workflows.
func (h *WorkflowsHandler) List(c *fiber.Ctx) error {
	list, err := h.service.ListWorkflows(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

// Get GET /workflows/:id.
func (h *WorkflowsHandler) Get(c *fiber.Ctx) error {
	wf, err := h.service.GetWorkflow(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": wf})
}

// Create POST /workflows.
func (h *WorkflowsHandler) Create(c *fiber.Ctx) error {
	var req dto.WorkflowRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	wf, err := h.service.CreateWorkflow(c.UserContext(), req.ToDefinition())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": wf})
}

// Update PUT /workflows/:id.
func (h *WorkflowsHandler) Update(c *fiber.Ctx) error {
	var req dto.WorkflowRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	wf, err := h.service.UpdateWorkflow(c.UserContext(), c.Params("id"), req.ToDefinition())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": wf})
}
