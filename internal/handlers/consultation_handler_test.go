package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/services"
	"github.com/mindnest/MindNestBack/internal/store"
)

type stubConsultationService struct {
	therapistsResult []models.TherapistProfile
	therapistsErr    error
	activeResult     *models.TherapistProfile
	activeErr        error
	selectResult     models.ConversationID
	selectWelcome    *models.Message
	selectErr        error
	sendResult       *models.Message
	sendErr          error
	markReadErr      error
	messagesResult   []models.Message
	messagesErr      error
	chatsResult      map[models.ConversationID]models.UserChatEntry
	chatsErr         error
	reconcileErr     error

	lastClient       models.ClientID
	lastTherapist    models.TherapistID
	lastConversation models.ConversationID
	lastSender       models.Role
	lastText         string
}

func (s *stubConsultationService) ListTherapists(_ context.Context) ([]models.TherapistProfile, error) {
	return s.therapistsResult, s.therapistsErr
}

func (s *stubConsultationService) ActiveTherapist(_ context.Context, client models.ClientID) (*models.TherapistProfile, error) {
	s.lastClient = client
	return s.activeResult, s.activeErr
}

func (s *stubConsultationService) SelectTherapist(_ context.Context, client models.ClientID, therapistID models.TherapistID) (models.ConversationID, *models.Message, error) {
	s.lastClient = client
	s.lastTherapist = therapistID
	return s.selectResult, s.selectWelcome, s.selectErr
}

func (s *stubConsultationService) SendMessage(_ context.Context, conversationID models.ConversationID, sender models.Role, text string) (*models.Message, error) {
	s.lastConversation = conversationID
	s.lastSender = sender
	s.lastText = text
	return s.sendResult, s.sendErr
}

func (s *stubConsultationService) MarkConversationRead(_ context.Context, conversationID models.ConversationID, reader models.Role) error {
	s.lastConversation = conversationID
	s.lastSender = reader
	return s.markReadErr
}

func (s *stubConsultationService) ListMessages(_ context.Context, conversationID models.ConversationID) ([]models.Message, error) {
	s.lastConversation = conversationID
	return s.messagesResult, s.messagesErr
}

func (s *stubConsultationService) UserChats(_ context.Context, client models.ClientID) (map[models.ConversationID]models.UserChatEntry, error) {
	s.lastClient = client
	return s.chatsResult, s.chatsErr
}

func (s *stubConsultationService) Reconcile(_ context.Context, conversationID models.ConversationID) error {
	s.lastConversation = conversationID
	return s.reconcileErr
}

type stubTherapistResolver struct {
	result *models.TherapistProfile
	err    error
}

func (s *stubTherapistResolver) GetByID(_ context.Context, id models.TherapistID) (*models.TherapistProfile, error) {
	if s.result != nil {
		profile := *s.result
		profile.ID = id
		return &profile, s.err
	}
	return nil, s.err
}

func newConsultationApp(service *stubConsultationService, resolver *stubTherapistResolver, phone, role string) *fiber.App {
	handler := NewConsultationHandler(service, resolver, nil, "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", phone)
		c.Locals("role", role)
		return c.Next()
	})
	app.Get("/api/v1/therapists", handler.ListTherapists)
	app.Get("/api/v1/therapists/active", handler.ActiveTherapist)
	app.Get("/api/v1/chats", handler.ListUserChats)
	app.Post("/api/v1/chats", handler.SelectTherapist)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)
	app.Post("/api/v1/conversations/:id/reconcile", handler.Reconcile)
	return app
}

func TestListTherapistsReturnsProfiles(t *testing.T) {
	service := &stubConsultationService{
		therapistsResult: []models.TherapistProfile{
			{ID: "t1", Name: "Dr. Sarah", Status: models.StatusOnline},
		},
	}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/therapists", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Therapists []models.TherapistProfile `json:"therapists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Therapists) != 1 || body.Therapists[0].Name != "Dr. Sarah" {
		t.Fatalf("unexpected response: %+v", body.Therapists)
	}
}

func TestSelectTherapistReturnsConversationAndWelcome(t *testing.T) {
	service := &stubConsultationService{
		selectResult:  "5550001_t1",
		selectWelcome: &models.Message{ID: "m1", Text: "Hello! I'm Dr. Sarah. How can I help you today?"},
	}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats",
		strings.NewReader(`{"therapist_id":"t1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastClient != "5550001" || service.lastTherapist != "t1" {
		t.Fatalf("unexpected service args: %q %q", service.lastClient, service.lastTherapist)
	}

	var body struct {
		ConversationID string          `json:"conversation_id"`
		Welcome        *models.Message `json:"welcome"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.ConversationID != "5550001_t1" || body.Welcome == nil {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestSelectTherapistRejectsTherapistRole(t *testing.T) {
	service := &stubConsultationService{}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5551000", "therapist")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats",
		strings.NewReader(`{"therapist_id":"t1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSelectTherapistMapsUnknownTherapist(t *testing.T) {
	service := &stubConsultationService{selectErr: services.ErrTherapistNotFound}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats",
		strings.NewReader(`{"therapist_id":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSendMessageAsConversationOwner(t *testing.T) {
	service := &stubConsultationService{
		sendResult: &models.Message{ID: "m2", Text: "hi", Sender: models.RoleUser},
	}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/5550001_t1/messages",
		strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastConversation != "5550001_t1" || service.lastSender != models.RoleUser {
		t.Fatalf("unexpected service args: %q %q", service.lastConversation, service.lastSender)
	}
	if service.lastText != "hi" {
		t.Fatalf("unexpected text %q", service.lastText)
	}
}

func TestSendMessageForeignConversationForbidden(t *testing.T) {
	service := &stubConsultationService{}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550002", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/5550001_t1/messages",
		strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTherapistAccessesConversationByProfilePhone(t *testing.T) {
	service := &stubConsultationService{messagesResult: []models.Message{{ID: "m1"}}}
	resolver := &stubTherapistResolver{result: &models.TherapistProfile{Phone: "5551000"}}
	app := newConsultationApp(service, resolver, "5551000", "therapist")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/5550001_t1/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTherapistWithMismatchedPhoneForbidden(t *testing.T) {
	service := &stubConsultationService{}
	resolver := &stubTherapistResolver{result: &models.TherapistProfile{Phone: "5551000"}}
	app := newConsultationApp(service, resolver, "5559999", "therapist")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/5550001_t1/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMarkReadReturnsNoContent(t *testing.T) {
	service := &stubConsultationService{}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/5550001_t1/read", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastSender != models.RoleUser {
		t.Fatalf("expected reader role user, got %q", service.lastSender)
	}
}

func TestGetMessagesMapsTransportErrorTo503(t *testing.T) {
	service := &stubConsultationService{
		messagesErr: &store.TransportError{Op: "read", Path: "x", Err: context.DeadlineExceeded},
	}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/5550001_t1/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGetMessagesRejectsMalformedConversationID(t *testing.T) {
	service := &stubConsultationService{}
	app := newConsultationApp(service, &stubTherapistResolver{}, "5550001", "user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/no-separator/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
