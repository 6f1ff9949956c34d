package apikeys

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/middleware"
	"github.com/naggery/naggery/internal/secerr"
	"github.com/naggery/naggery/internal/vault"
)

// Handler exposes the key vault over HTTP. Plaintext keys never leave it.
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

func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.svc.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"apiKeys": list})
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	view, err := h.svc.Create(c.UserContext(), middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(view)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	var in UpdateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	view, err := h.svc.Update(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Check decrypts the active key for :provider server-side and reports
// whether it is usable. A key that no longer decrypts surfaces as an error.
func (h *Handler) Check(c *fiber.Ctx) error {
	provider, ok := vault.ParseProvider(c.Params("provider"))
	if !ok {
		return secerr.Validation("provider", "unsupported API provider")
	}
	plain, err := h.svc.Reveal(c.UserContext(), middleware.UserID(c), provider)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"provider": provider, "usable": true, "masked": vault.MaskAPIKey(plain)})
}
