package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/services"
	"github.com/mindnest/MindNestBack/internal/store"
)

type therapistApplicationService interface {
	GetTherapistDashboardStats(ctx context.Context, therapistID models.TherapistID) (*models.DashboardStats, error)
	ListClients(ctx context.Context, therapistID models.TherapistID) ([]models.ClientSummary, error)
}

type presenceApplicationService interface {
	SetPresence(ctx context.Context, id models.TherapistID, online bool) error
	EnsureTherapistProfile(ctx context.Context, phone string) (*models.TherapistProfile, error)
}

type conversationNotes interface {
	SaveNotes(ctx context.Context, therapist models.TherapistID, conversationID models.ConversationID, notes string) error
	GetNotes(ctx context.Context, therapist models.TherapistID, conversationID models.ConversationID) (string, error)
}

type TherapistHandler struct {
	service  therapistApplicationService
	presence presenceApplicationService
	notes    conversationNotes
}

func NewTherapistHandler(
	service therapistApplicationService,
	presence presenceApplicationService,
	notes conversationNotes,
) *TherapistHandler {
	return &TherapistHandler{
		service:  service,
		presence: presence,
		notes:    notes,
	}
}

type presenceRequest struct {
	Online bool `json:"online"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// resolveTherapist maps the authenticated phone to the therapist profile,
// creating it on first access.
func (h *TherapistHandler) resolveTherapist(c *fiber.Ctx) (*models.TherapistProfile, error) {
	phone, role, err := callerIdentity(c)
	if err != nil || role != "therapist" {
		return nil, services.ErrForbidden
	}
	return h.presence.EnsureTherapistProfile(c.Context(), phone)
}

func (h *TherapistHandler) GetProfile(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"therapist": therapist})
}

func (h *TherapistHandler) GetDashboardStats(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	stats, err := h.service.GetTherapistDashboardStats(c.Context(), therapist.ID)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (h *TherapistHandler) ListClients(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	clients, err := h.service.ListClients(c.Context(), therapist.ID)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"clients": clients})
}

func (h *TherapistHandler) SetPresence(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.presence.SetPresence(c.Context(), therapist.ID, req.Online); err != nil {
		return mapConsultationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TherapistHandler) SaveNotes(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	conversationID := models.ConversationID(c.Params("id"))
	if _, _, err := conversationID.Participants(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req notesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.notes.SaveNotes(c.Context(), therapist.ID, conversationID, req.Notes); err != nil {
		return mapConsultationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TherapistHandler) GetNotes(c *fiber.Ctx) error {
	therapist, err := h.resolveTherapist(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	conversationID := models.ConversationID(c.Params("id"))
	notes, err := h.notes.GetNotes(c.Context(), therapist.ID, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(fiber.Map{"notes": ""})
		}
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"notes": notes})
}
