package routes

import (
	"shelfshare/internal/adapters/http/handlers"
	"shelfshare/internal/adapters/http/middleware"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/config"
	"shelfshare/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Initialize services. The notification service is the event sink for
	// every lifecycle transition.
	notificationService := services.NewNotificationService(notificationRepo)
	authService := services.NewAuthService(userRepo, cfg)
	bookService := services.NewBookService(bookRepo)
	loanService := services.NewLoanService(db, loanRepo, bookRepo, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	bookHandler := handlers.NewBookHandler(bookService)
	loanHandler := handlers.NewLoanHandler(loanService)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)

	// Health check
	app.Get("/health", handlers.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")

	// Auth routes (public, stricter rate limit)
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/register", middleware.AuthRateLimiter(), authHandler.Register)
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Get("/me", middleware.Protected(cfg), authHandler.Me)

	// Book routes
	bookRoutes := apiV1.Group("/books")
	bookRoutes.Use(middleware.Protected(cfg))
	bookRoutes.Post("/", bookHandler.Add)
	bookRoutes.Get("/", bookHandler.Browse)
	bookRoutes.Get("/mine", bookHandler.ListMine)
	bookRoutes.Get("/:id", bookHandler.Get)
	bookRoutes.Put("/:id", bookHandler.Update)
	bookRoutes.Delete("/:id", bookHandler.Remove)
	bookRoutes.Post("/:id/return", loanHandler.Return)
	bookRoutes.Get("/:id/loans", loanHandler.BookHistory)

	// Loan routes
	loanRoutes := apiV1.Group("/loans")
	loanRoutes.Use(middleware.Protected(cfg))
	loanRoutes.Post("/", loanHandler.Request)
	loanRoutes.Get("/", loanHandler.List)
	loanRoutes.Get("/:uid", loanHandler.GetByUID)
	loanRoutes.Get("/:uid/history", loanHandler.Transitions)
	loanRoutes.Post("/:uid/approve", loanHandler.Approve)
	loanRoutes.Post("/:uid/reject", loanHandler.Reject)
	loanRoutes.Post("/:uid/cancel", loanHandler.Cancel)
	loanRoutes.Patch("/:uid/due-date", loanHandler.SetDueDate)

	// Notification routes
	notificationRoutes := apiV1.Group("/notifications")
	notificationRoutes.Use(middleware.Protected(cfg))
	notificationRoutes.Get("/", notificationHandler.List)
	notificationRoutes.Patch("/read-all", notificationHandler.MarkAllRead)
	notificationRoutes.Patch("/:id/read", notificationHandler.MarkRead)
}
