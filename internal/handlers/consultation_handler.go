package handlers

import (
	"context"
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/services"
	"github.com/mindnest/MindNestBack/internal/store"
	chatws "github.com/mindnest/MindNestBack/internal/websocket"
	"github.com/mindnest/MindNestBack/pkg/utils"
)

type consultationApplicationService interface {
	ListTherapists(ctx context.Context) ([]models.TherapistProfile, error)
	ActiveTherapist(ctx context.Context, client models.ClientID) (*models.TherapistProfile, error)
	SelectTherapist(ctx context.Context, client models.ClientID, therapistID models.TherapistID) (models.ConversationID, *models.Message, error)
	SendMessage(ctx context.Context, conversationID models.ConversationID, sender models.Role, text string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID models.ConversationID, reader models.Role) error
	ListMessages(ctx context.Context, conversationID models.ConversationID) ([]models.Message, error)
	UserChats(ctx context.Context, client models.ClientID) (map[models.ConversationID]models.UserChatEntry, error)
	Reconcile(ctx context.Context, conversationID models.ConversationID) error
}

type therapistResolver interface {
	GetByID(ctx context.Context, id models.TherapistID) (*models.TherapistProfile, error)
}

type ConsultationHandler struct {
	service    consultationApplicationService
	therapists therapistResolver
	hub        *chatws.Hub
	jwtSecret  string
}

func NewConsultationHandler(
	service consultationApplicationService,
	therapists therapistResolver,
	hub *chatws.Hub,
	jwtSecret string,
) *ConsultationHandler {
	return &ConsultationHandler{
		service:    service,
		therapists: therapists,
		hub:        hub,
		jwtSecret:  jwtSecret,
	}
}

type selectTherapistRequest struct {
	TherapistID string `json:"therapist_id"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *ConsultationHandler) ListTherapists(c *fiber.Ctx) error {
	therapists, err := h.service.ListTherapists(c.Context())
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"therapists": therapists})
}

func (h *ConsultationHandler) ActiveTherapist(c *fiber.Ctx) error {
	phone, role, err := callerIdentity(c)
	if err != nil || role != "user" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	therapist, err := h.service.ActiveTherapist(c.Context(), models.ClientID(phone))
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"therapist": therapist})
}

func (h *ConsultationHandler) SelectTherapist(c *fiber.Ctx) error {
	phone, role, err := callerIdentity(c)
	if err != nil || role != "user" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req selectTherapistRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversationID, welcome, err := h.service.SelectTherapist(
		c.Context(),
		models.ClientID(phone),
		models.TherapistID(strings.TrimSpace(req.TherapistID)),
	)
	if err != nil {
		return mapConsultationError(c, err)
	}

	response := fiber.Map{"conversation_id": conversationID}
	if welcome != nil {
		response["welcome"] = welcome
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *ConsultationHandler) ListUserChats(c *fiber.Ctx) error {
	phone, role, err := callerIdentity(c)
	if err != nil || role != "user" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	chats, err := h.service.UserChats(c.Context(), models.ClientID(phone))
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

func (h *ConsultationHandler) GetMessages(c *fiber.Ctx) error {
	conversationID, _, err := h.authorizeConversation(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	messages, err := h.service.ListMessages(c.Context(), conversationID)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ConsultationHandler) SendMessage(c *fiber.Ctx) error {
	conversationID, senderRole, err := h.authorizeConversation(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), conversationID, senderRole, req.Text)
	if err != nil {
		return mapConsultationError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ConsultationHandler) MarkRead(c *fiber.Ctx) error {
	conversationID, senderRole, err := h.authorizeConversation(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	if err := h.service.MarkConversationRead(c.Context(), conversationID, senderRole); err != nil {
		return mapConsultationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ConsultationHandler) Reconcile(c *fiber.Ctx) error {
	conversationID, _, err := h.authorizeConversation(c)
	if err != nil {
		return mapConsultationError(c, err)
	}

	if err := h.service.Reconcile(c.Context(), conversationID); err != nil {
		return mapConsultationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ConsultationHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)

	conversationID, senderRole, err := h.authorizeConversation(c)
	if err != nil {
		return mapConsultationError(c, err)
	}
	c.Locals("conversation_id", string(conversationID))
	c.Locals("sender_role", string(senderRole))
	return c.Next()
}

func (h *ConsultationHandler) HandleWebSocket(conn *websocket.Conn) {
	conversation, _ := conn.Locals("conversation_id").(string)
	role, _ := conn.Locals("sender_role").(string)
	client := chatws.NewClient(h.hub, conn, models.ConversationID(conversation), models.Role(role))

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

// authorizeConversation resolves the conversation from the path and verifies
// the caller participates in it: clients by phone, therapists by the phone on
// the therapist profile named in the conversation id.
func (h *ConsultationHandler) authorizeConversation(c *fiber.Ctx) (models.ConversationID, models.Role, error) {
	phone, role, err := callerIdentity(c)
	if err != nil {
		return "", "", services.ErrForbidden
	}

	conversationID := models.ConversationID(c.Params("id"))
	client, therapistID, err := conversationID.Participants()
	if err != nil {
		return "", "", services.ErrValidation
	}

	switch role {
	case "user":
		if string(client) != phone {
			return "", "", services.ErrForbidden
		}
		return conversationID, models.RoleUser, nil
	case "therapist":
		therapist, err := h.therapists.GetByID(c.Context(), therapistID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", "", services.ErrForbidden
			}
			return "", "", err
		}
		if therapist.Phone != phone {
			return "", "", services.ErrForbidden
		}
		return conversationID, models.RoleTherapist, nil
	default:
		return "", "", services.ErrForbidden
	}
}

func (h *ConsultationHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func callerIdentity(c *fiber.Ctx) (string, string, error) {
	phone, ok := c.Locals("user_id").(string)
	if !ok || phone == "" {
		return "", "", errors.New("missing identity")
	}
	role, ok := c.Locals("role").(string)
	if !ok || role == "" {
		return "", "", errors.New("missing role")
	}
	return phone, role, nil
}

func mapConsultationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrTherapistNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Therapist not found"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case store.IsTransport(err):
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "Storage temporarily unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process request"})
	}
}
