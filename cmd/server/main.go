package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"shelfshare/internal/adapters/http/middleware"
	"shelfshare/internal/adapters/http/routes"
	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/config"
	"shelfshare/internal/core/services"

	"github.com/gofiber/fiber/v2"

	_ "shelfshare/docs" // Swagger docs
)

// @title ShelfShare API
// @version 1.0
// @description Peer-to-peer book lending between neighbours: shelves, loan requests and due dates.

// @contact.name API Support
// @contact.email support@shelfshare.dev

// @license.name MIT

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed demo data in dev mode
	if cfg.IsDev() {
		if err := config.SeedDevData(db); err != nil {
			log.Printf("⚠️ Warning: Failed to seed demo data: %v", err)
		}
	}

	// Start the overdue scanner (daily sweep, publishes into notifications)
	loanRepo := repositories.NewLoanRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	overdueService := services.NewOverdueService(loanRepo, services.NewNotificationService(notificationRepo))
	if err := overdueService.Start(); err != nil {
		log.Fatalf("❌ Failed to start overdue scanner: %v", err)
	}
	defer overdueService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ShelfShare API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
