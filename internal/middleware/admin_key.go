package middleware

import (
	"coopvote-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const adminKeyHeader = "X-Admin-Key"

// RequireAdminKey gates the results endpoints with a bcrypt-hashed shared
// key. Staff authentication proper lives in the back office; this is the
// lighter gate for the tally surface.
func RequireAdminKey(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if keyHash == "" {
			return response.Error(c, "Results access not configured", fiber.StatusForbidden, nil)
		}
		key := c.Get(adminKeyHeader)
		if key == "" {
			return response.Unauthorized(c, "Admin key required")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			return response.Unauthorized(c, "Invalid admin key")
		}
		return c.Next()
	}
}
