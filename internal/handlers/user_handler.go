package handlers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"phonebook/internal/repositories"
	"phonebook/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UserHandler handles HTTP requests for accounts: signup, login, logout,
// current-user, avatar upload and email verification.
type UserHandler struct {
	authService   *services.AuthService
	avatarService *services.AvatarService
	validate      *validator.Validate
	tmpDir        string
}

// NewUserHandler creates a new UserHandler. The validator is built once and
// reused for every request.
func NewUserHandler(authService *services.AuthService, avatarService *services.AvatarService, tmpDir string) *UserHandler {
	return &UserHandler{
		authService:   authService,
		avatarService: avatarService,
		validate:      validator.New(),
		tmpDir:        tmpDir,
	}
}

// RegisterRoutes registers the user routes with the Fiber app. authRequired
// gates the routes that need a bearer token.
func (h *UserHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/signup", h.HandleSignup)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Get("/logout", authRequired, h.HandleLogout)
	userRoutes.Get("/current", authRequired, h.HandleCurrent)
	userRoutes.Patch("/avatars", authRequired, h.HandleAvatarUpload)
	userRoutes.Get("/verify/:verificationToken", h.HandleVerifyEmail)
	userRoutes.Post("/verify", h.HandleResendVerification)
}

// CredentialsRequest is the request body for signup and login.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleSignup handles new account registration.
func (h *UserHandler) HandleSignup(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	user, err := h.authService.Signup(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Email in use",
			})
		}
		log.Printf("Error during signup: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": user.Public(),
	})
}

// HandleLogin handles user login and issues a bearer token. Unknown email
// and wrong password deliberately share one response.
func (h *UserHandler) HandleLogin(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	token, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Email or password is wrong",
			})
		}
		log.Printf("Error during login: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}

// HandleLogout clears the stored token of the authenticated user.
func (h *UserHandler) HandleLogout(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if err := h.authService.Logout(userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}
		log.Printf("Error during logout: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleCurrent returns the public profile of the authenticated user.
func (h *UserHandler) HandleCurrent(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.authService.CurrentUser(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}
		log.Printf("Error getting current user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(user.Public())
}

// HandleAvatarUpload accepts a multipart "avatar" file, stores it through
// the avatar pipeline and records the resulting URL on the user.
func (h *UserHandler) HandleAvatarUpload(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing avatar file",
		})
	}

	if err := os.MkdirAll(h.tmpDir, 0o755); err != nil {
		log.Printf("Error creating tmp dir: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	tmpPath := filepath.Join(h.tmpDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tmpPath); err != nil {
		log.Printf("Error saving upload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	fileName, err := h.avatarService.ProcessUpload(tmpPath)
	if err != nil {
		if errors.Is(err, services.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "File is not a photo",
			})
		}
		log.Printf("Error processing avatar: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	avatarURL := "/avatars/" + fileName
	if err := h.authService.SetAvatarURL(userID, avatarURL); err != nil {
		log.Printf("Error storing avatar URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"avatarURL": avatarURL,
	})
}

// HandleVerifyEmail consumes the verification token mailed to a new user.
func (h *UserHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	token := c.Params("verificationToken")
	if err := h.authService.VerifyEmail(token); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error during email verification: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Verification successful",
	})
}

// ResendVerificationRequest is the request body for a verification resend.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// HandleResendVerification issues a fresh verification token and re-sends
// the verification email.
func (h *UserHandler) HandleResendVerification(c *fiber.Ctx) error {
	var req ResendVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing required field email",
		})
	}

	if err := h.authService.ResendVerification(req.Email); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		case errors.Is(err, services.ErrAlreadyVerified):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Verification has already been passed",
			})
		default:
			log.Printf("Error during verification resend: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal server error",
			})
		}
	}
	return c.JSON(fiber.Map{
		"message": "Verification email sent",
	})
}

// validationMessages flattens validator errors into a field→message map.
func validationMessages(err error) map[string]string {
	messages := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			messages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return messages
}
