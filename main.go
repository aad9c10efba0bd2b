package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"phonebook/internal/config"
	"phonebook/internal/handlers"
	"phonebook/internal/middleware"
	"phonebook/internal/models"
	"phonebook/internal/repositories"
	"phonebook/internal/services"
	"phonebook/pkg/mailer"
	"phonebook/pkg/rabbitmq"
)

// NewApp wires repositories, services and handlers into a Fiber app. The
// database and notifier are injected so tests can run against in-memory
// SQLite with a fake notifier.
func NewApp(cfg *config.Config, db *gorm.DB, notifier services.VerificationNotifier) (*fiber.App, *services.AuthService, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Contact{}); err != nil {
		return nil, nil, err
	}

	// Repositories
	userRepo := repositories.NewGORMUserRepository(db)
	contactRepo := repositories.NewGORMContactRepository(db)

	// Services
	authService := services.NewAuthService(userRepo, notifier, cfg.JWTSecret, cfg.TokenTTL)
	contactService := services.NewContactService(contactRepo)
	avatarService := services.NewAvatarService(cfg.AvatarDir, nil)

	// Handlers
	userHandler := handlers.NewUserHandler(authService, avatarService, cfg.TmpDir)
	contactHandler := handlers.NewContactHandler(contactService)

	app := fiber.New()

	// Middleware
	app.Use(logger.New()) // Request logger
	app.Use(cors.New())

	// Processed avatars are served as plain static files.
	app.Static("/avatars", cfg.AvatarDir)

	// API routes
	api := app.Group("/api")
	userHandler.RegisterRoutes(api, middleware.AuthRequired(authService))
	contactHandler.RegisterRoutes(api)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app, authService, nil
}

func main() {
	cfg := config.Load()

	// Database
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		// Duplicate-key violations must surface as gorm.ErrDuplicatedKey
		// so the user repository can report ErrDuplicateEmail.
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Verification email delivery. With a broker configured, signup
	// enqueues jobs and the consumer below drains them into the SMTP
	// sender; without one, the sender is called directly.
	mailLog := logrus.New()
	mailSender := mailer.NewSender(cfg, mailLog)
	var notifier services.VerificationNotifier = mailSender

	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		notifier = mqClient

		log.Println("Starting RabbitMQ consumer for verification emails...")
		err = mqClient.ConsumeVerificationJobs(func(job rabbitmq.VerificationJob) error {
			return mailSender.NotifyVerification(job.Email, job.Token)
		})
		if err != nil {
			log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	app, _, err := NewApp(cfg, db, notifier)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
