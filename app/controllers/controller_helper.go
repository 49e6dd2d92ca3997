package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/coursedesk/coursedesk/internal/pkg/reconcile"
)

// respondSuccess writes the {"success":true,"data":…} envelope.
func respondSuccess(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// respondError writes the {"success":false,"error":{…}} envelope.
func respondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
// Unrecognized errors become opaque 500s so internals never leak.
func respondEngineError(c *fiber.Ctx, err error) error {
	var engineErr *reconcile.Error
	if errors.As(err, &engineErr) {
		status := fiber.StatusConflict
		switch engineErr {
		case reconcile.ErrInvalidCourse:
			status = fiber.StatusNotFound
		case reconcile.ErrGatewayUnavailable:
			status = fiber.StatusServiceUnavailable
		case reconcile.ErrInvalidSignature:
			status = fiber.StatusBadRequest
		case reconcile.ErrRefundExceedsCaptured:
			status = fiber.StatusUnprocessableEntity
		}
		return respondError(c, status, engineErr.Code, engineErr.Message)
	}
	return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
}
