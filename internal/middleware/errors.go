package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/naggery/naggery/internal/secerr"
)

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// Status maps a security error kind to its HTTP status.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, secerr.ErrValidation),
		errors.Is(err, secerr.ErrExpired),
		errors.Is(err, secerr.ErrAlreadyVerified),
		errors.Is(err, secerr.ErrAttemptsExceeded),
		errors.Is(err, secerr.ErrCodeMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, secerr.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, secerr.ErrLocked):
		return fiber.StatusLocked
	case errors.Is(err, secerr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, secerr.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, secerr.ErrInvalidCredentials), errors.Is(err, secerr.ErrUnauthorized):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders errors as {"error": ...}. Internal failures are
// logged and replaced by a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := Status(err)
		body := errorBody{Error: err.Error(), RequestID: RequestIDFrom(c)}

		var (
			verr   *secerr.ValidationError
			rl     *secerr.RateLimitError
			locked *secerr.LockedError
		)
		switch {
		case errors.As(err, &verr):
			body.Error = "validation failed"
			body.Fields = verr.Fields
		case errors.As(err, &rl):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds(rl.RetryAfter)))
		case errors.As(err, &locked):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds(locked.Remaining(time.Now()))))
		}
		if status == fiber.StatusInternalServerError {
			logger.Error("request failed", slog.String("path", c.Path()), slog.String("request_id", body.RequestID), slog.Any("error", err))
			body.Error = "internal server error"
		}
		return c.Status(status).JSON(body)
	}
}

func seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
