package middleware

import (
	"strings"

	"phonebook/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserIDKey is the Locals key under which AuthRequired stores the resolved
// user ID for downstream handlers.
const UserIDKey = "user_id"

// AuthRequired is a Fiber middleware gating routes behind a valid bearer
// token. Missing header, malformed header and failed validation all answer
// 401 without distinguishing the cause beyond the message.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		userID, err := authService.ValidateToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		// Attach the resolved identity for subsequent handlers
		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}
