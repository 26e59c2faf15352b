package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/services"
	"github.com/localnerve/portsmith/internal/utils"
	"gorm.io/gorm"
)

// Ping handles GET /ping
// @Summary Liveness
// @Tags Status
// @Produce plain
// @Success 200 {string} string "ok"
// @Router /ping [get]
func Ping(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// HealthHandler reports dependency health
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
}

// Health handles GET /health
// @Summary Health check
// @Description Ping the database and, when events are enabled, the broker
// @Tags Status
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Config, h.DB)
	if !result.Healthy() {
		return utils.SuccessResponse(c, result, fiber.StatusServiceUnavailable)
	}
	return utils.SuccessResponse(c, result, fiber.StatusOK)
}
