package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/security"
)

// RegisterAuthRoutes wires signup and password login. guards run before the
// signup handler.
func RegisterAuthRoutes(r fiber.Router, h *security.Handler, guards ...fiber.Handler) {
	r.Post("/signup", append(guards, h.Signup)...)
	r.Post("/login", h.Login)
}
