package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/mindnest/MindNestBack/internal/models"
)

type assistantCompleter interface {
	Complete(ctx context.Context, history []models.Message) (string, error)
}

// AssistantHandler serves the AI-assistant chat. The transcript lives on the
// device; each request carries the history it wants continued.
type AssistantHandler struct {
	service assistantCompleter
}

func NewAssistantHandler(service assistantCompleter) *AssistantHandler {
	return &AssistantHandler{service: service}
}

type assistantRequest struct {
	Messages []models.Message `json:"messages"`
}

func (h *AssistantHandler) Complete(c *fiber.Ctx) error {
	var req assistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	reply, err := h.service.Complete(c.Context(), req.Messages)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}
