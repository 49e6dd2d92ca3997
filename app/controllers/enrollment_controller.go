package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/coursedesk/coursedesk/internal/pkg/metrics/counter"
	"github.com/coursedesk/coursedesk/internal/pkg/usercontext"
)

type freeEnrollRequest struct {
	CourseID uint `json:"course_id" validate:"required,gt=0"`
}

// HandleFreeEnroll grants access to a zero-price course without creating a
// payment.
func HandleFreeEnroll(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req freeEnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "course_id is required")
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enrollment, err := svc.EnrollFree(ctx, userCtx.UserID, req.CourseID)
	if err != nil {
		return respondEngineError(c, err)
	}

	_ = counter.Add(counter.FieldFreeEnrollmentsMade)
	return respondSuccess(c, fiber.StatusCreated, fiber.Map{"enrollment": enrollment})
}

// HandleListEnrollments returns the caller's enrollments with their current
// access status.
func HandleListEnrollments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enrollments, err := svc.EnrollmentsByUser(ctx, userCtx.UserID)
	if err != nil {
		return respondEngineError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"enrollments": enrollments})
}
