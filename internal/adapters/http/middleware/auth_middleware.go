package middleware

import (
	"strings"

	"shelfshare/internal/config"
	"shelfshare/internal/pkg/jwt"
	"shelfshare/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Protected validates the Bearer token and injects the caller identity into
// locals. Handlers pass that identity explicitly into the services; nothing
// downstream reads it ambiently.
func Protected(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return response.Unauthorized(c, "Invalid authorization header")
		}

		claims, err := jwt.ValidateAccessToken(parts[1], cfg.JWT)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		return c.Next()
	}
}
