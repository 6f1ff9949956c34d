package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/apikeys"
	"github.com/naggery/naggery/internal/security"
)

// RegisterSecurityRoutes wires account settings and the API-key vault.
func RegisterSecurityRoutes(r fiber.Router, sec *security.Handler, keys *apikeys.Handler, session fiber.Handler) {
	group := r.Group("/security", session)

	group.Get("/settings", sec.Settings)
	group.Put("/settings", sec.UpdateProfile)

	group.Get("/api-keys", keys.List)
	group.Post("/api-keys", keys.Create)
	group.Post("/api-keys/check/:provider", keys.Check)
	group.Put("/api-keys/:id", keys.Update)
	group.Delete("/api-keys/:id", keys.Delete)
}
