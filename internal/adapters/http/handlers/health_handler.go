package handlers

import (
	"shelfshare/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports service and database health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func HealthCheck(c *fiber.Ctx) error {
	if err := config.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "down",
		})
	}

	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "up",
	})
}
