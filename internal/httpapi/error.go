package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle-im/huddle/internal/apperr"
)

// writeError maps a service error to an HTTP response. Classification
// happens here and nowhere else; services only wrap the apperr
// sentinels.
func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case apperr.IsInvalid(err):
		status = fiber.StatusBadRequest
	case apperr.IsUnauthorized(err):
		status = fiber.StatusUnauthorized
	case apperr.IsForbidden(err):
		status = fiber.StatusForbidden
	case apperr.IsNotFound(err):
		status = fiber.StatusNotFound
	case apperr.IsConflict(err):
		status = fiber.StatusConflict
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		// Internal detail stays in the logs.
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
