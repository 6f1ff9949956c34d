package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/security"
)

// RegisterVerificationRoutes wires the email link and SMS code flows.
func RegisterVerificationRoutes(r fiber.Router, h *security.Handler) {
	r.Get("/verify-email", h.VerifyEmail)
	r.Post("/verify-email", h.ResendEmailVerification)
	r.Post("/verify-sms", h.SendSMSCode)
	r.Put("/verify-sms", h.VerifySMSCode)
}
