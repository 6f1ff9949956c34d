package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/security"
)

// RegisterTwoFactorRoutes wires authenticator setup and the login-time
// second factor. Only POST /verify-2fa is public; it needs a challenge token.
func RegisterTwoFactorRoutes(r fiber.Router, h *security.Handler, session fiber.Handler) {
	r.Post("/verify-2fa", h.VerifyTwoFactorLogin)
	r.Get("/verify-2fa", session, h.BackupCodeSummary)

	setup := r.Group("/setup-2fa", session)
	setup.Get("", h.BeginTwoFactorSetup)
	setup.Post("", h.ConfirmTwoFactorSetup)
	setup.Delete("", h.DisableTwoFactor)
}
