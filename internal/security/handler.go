package security

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/middleware"
)

// Handler exposes the security flows over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// Signup registers an account and starts email verification.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.IP = c.IP()
	res, err := h.svc.Signup(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// Login checks a password and returns a session or a 2FA challenge.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.IP = c.IP()
	res, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "token is required")
	}
	res, err := h.svc.VerifyEmail(c.UserContext(), token, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type resendRequest struct {
	Email string `json:"email"`
}

func (h *Handler) ResendEmailVerification(c *fiber.Ctx) error {
	var req resendRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sent, err := h.svc.ResendEmailVerification(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"emailSent": sent})
}

func (h *Handler) SendSMSCode(c *fiber.Ctx) error {
	var req SMSSendRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.SendSMSCode(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) VerifySMSCode(c *fiber.Ctx) error {
	var req SMSVerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.IP = c.IP()
	res, err := h.svc.VerifySMSCode(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// VerifyTwoFactorLogin trades a challenge token and code for a session.
func (h *Handler) VerifyTwoFactorLogin(c *fiber.Ctx) error {
	var req TwoFactorLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.VerifyTwoFactorLogin(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) BackupCodeSummary(c *fiber.Ctx) error {
	summary, err := h.svc.BackupCodeSummary(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"backupCodesCount": summary})
}

func (h *Handler) BeginTwoFactorSetup(c *fiber.Ctx) error {
	res, err := h.svc.BeginTwoFactorSetup(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) ConfirmTwoFactorSetup(c *fiber.Ctx) error {
	var req TwoFactorConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.ConfirmTwoFactorSetup(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) DisableTwoFactor(c *fiber.Ctx) error {
	var req TwoFactorDisableRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.DisableTwoFactor(c.UserContext(), middleware.UserID(c), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"twoFaEnabled": false})
}

func (h *Handler) Settings(c *fiber.Ctx) error {
	res, err := h.svc.SecuritySettings(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.UpdateProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": res})
}
