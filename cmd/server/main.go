package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mindnest/MindNestBack/internal/config"
	"github.com/mindnest/MindNestBack/internal/database"
	"github.com/mindnest/MindNestBack/internal/routes"
	"github.com/mindnest/MindNestBack/internal/store"
	"github.com/mindnest/MindNestBack/internal/store/memory"
	"github.com/mindnest/MindNestBack/internal/store/postgres"
	"github.com/mindnest/MindNestBack/pkg/logger"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)

	// 2. Open the document store. Without DB_URL everything is kept
	// in process memory, which is enough for local development.
	var st store.Store
	if cfg.DBUrl == "" {
		appLog.Warn("DB_URL not set, using in-memory store")
		st = memory.New()
	} else {
		pool, err := database.Connect(context.Background(), cfg.DBUrl)
		if err != nil {
			appLog.WithError(err).Fatal("Failed to connect to database")
		}
		defer pool.Close()
		st = postgres.NewStore(pool)
		appLog.Info("Connected to PostgreSQL")
	}

	// 3. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, st, appLog)

	// 4. Start Server
	appLog.Infof("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		appLog.WithError(err).Fatal("Server failed to start")
	}
}
