package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/auth"
)

// UserIDKey is the fiber local holding the authenticated user id.
const UserIDKey = "user_id"

// SessionAuth requires a valid session bearer token and stores its subject
// under UserIDKey. Challenge tokens are refused.
func SessionAuth(issuer *auth.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		claims, err := issuer.ParseSession(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(UserIDKey, claims.Subject)
		return c.Next()
	}
}

// UserID returns the id stored by SessionAuth, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
