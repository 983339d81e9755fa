package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/mindnest/MindNestBack/internal/config"
	"github.com/mindnest/MindNestBack/internal/handlers"
	"github.com/mindnest/MindNestBack/internal/middleware"
	"github.com/mindnest/MindNestBack/internal/repository"
	"github.com/mindnest/MindNestBack/internal/services"
	"github.com/mindnest/MindNestBack/internal/store"
	chatws "github.com/mindnest/MindNestBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, st store.Store, log *logrus.Logger) {
	userRepo := repository.NewUserRepository(st)
	therapistRepo := repository.NewTherapistRepository(st)
	messageRepo := repository.NewMessageRepository(st)
	indexRepo := repository.NewChatIndexRepository(st, log)

	consultationService := services.NewConsultationService(
		st,
		messageRepo,
		indexRepo,
		therapistRepo,
		userRepo,
		log,
	)
	presenceService := services.NewPresenceService(therapistRepo, userRepo, log)

	chatHub := chatws.NewHub(consultationService)
	go chatHub.Run()

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	consultationHandler := handlers.NewConsultationHandler(
		consultationService,
		therapistRepo,
		chatHub,
		cfg.JWTSecret,
	)
	therapistHandler := handlers.NewTherapistHandler(consultationService, presenceService, indexRepo)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	therapists := authProtected.Group("/therapists")
	therapists.Get("", consultationHandler.ListTherapists)
	therapists.Get("/active", consultationHandler.ActiveTherapist)

	chats := authProtected.Group("/chats")
	chats.Get("", consultationHandler.ListUserChats)
	chats.Post("", consultationHandler.SelectTherapist)

	conversations := authProtected.Group("/conversations")
	conversations.Get("/:id/messages", consultationHandler.GetMessages)
	conversations.Post("/:id/messages", consultationHandler.SendMessage)
	conversations.Post("/:id/read", consultationHandler.MarkRead)
	conversations.Post("/:id/reconcile", consultationHandler.Reconcile)
	conversations.Put("/:id/notes", therapistHandler.SaveNotes)
	conversations.Get("/:id/notes", therapistHandler.GetNotes)

	therapist := authProtected.Group("/therapist")
	therapist.Get("/profile", therapistHandler.GetProfile)
	therapist.Get("/dashboard", therapistHandler.GetDashboardStats)
	therapist.Get("/clients", therapistHandler.ListClients)
	therapist.Put("/presence", therapistHandler.SetPresence)

	if cfg.AssistantEnabled() {
		assistantService := services.NewAssistantService(
			cfg.AssistantAPIURL,
			cfg.AssistantAPIKey,
			cfg.AssistantModel,
		)
		assistantHandler := handlers.NewAssistantHandler(assistantService)
		authProtected.Post("/assistant/complete", assistantHandler.Complete)
	}

	api.Use("/v1/ws/conversations/:id", consultationHandler.WebSocketAuth)
	api.Get("/v1/ws/conversations/:id", websocket.New(consultationHandler.HandleWebSocket))
}
