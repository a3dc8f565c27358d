package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers holds dependencies for the health endpoint.
type Handlers struct {
	DB  DBPinger
	Rdb *redis.Client
}

// JSON GET /health/json — dependency statuses and uptime.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := Collect(c.Context(), h.DB, h.Rdb)
	return c.JSON(fiber.Map{
		"service":       "coopvote-api",
		"status":        result.Status,
		"uptimeSeconds": result.UptimeSeconds,
		"goVersion":     result.GoVersion,
		"dependencies":  result.Dependencies,
	})
}
