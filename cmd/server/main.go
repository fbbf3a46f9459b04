package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/peoplelab/hr-kb/internal/adapter/ai"
	"github.com/peoplelab/hr-kb/internal/adapter/store"
	"github.com/peoplelab/hr-kb/internal/handler"
	"github.com/peoplelab/hr-kb/internal/mcp"
	"github.com/peoplelab/hr-kb/internal/middleware"
	"github.com/peoplelab/hr-kb/internal/service"
	"github.com/peoplelab/hr-kb/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting HR Knowledge Base",
		"port", cfg.Port,
		"embedding_model", cfg.EmbeddingModel,
		"embedding_dimension", cfg.EmbeddingDimension,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	embedder := ai.NewOpenAIProvider(ai.OpenAIConfig{
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		Timeout:   time.Duration(cfg.EmbeddingTimeout) * time.Second,
	})

	// ── Services ─────────────────────────────────────────────────────────
	qnaService := service.NewQnAService(pgStore, vectorStore, embedder, cfg.SimilarityThreshold, cfg.RetrievalWidth)
	manualService := service.NewManualService(pgStore, vectorStore, embedder, cfg.SimilarityThreshold, cfg.RetrievalWidth)
	maintenanceService := service.NewMaintenanceService(pgStore, pgStore, vectorStore, embedder)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	// Current user profile
	api.Get("/me", func(c fiber.Ctx) error {
		uc := middleware.GetUserContext(c)
		if uc == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		user, err := pgStore.GetUserByID(c.Context(), uc.UserID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.JSON(user)
	})

	jobTracker := handler.NewJobTracker()

	qnaHandler := handler.NewQnAHandler(qnaService)
	qnaHandler.Register(api)

	manualHandler := handler.NewManualHandler(manualService)
	manualHandler.Register(api)

	categoryHandler := handler.NewCategoryHandler(pgStore)
	categoryHandler.Register(api)

	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceService, jobTracker)
	maintenanceHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(qnaService, manualService, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
