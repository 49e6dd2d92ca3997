package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/coursedesk/coursedesk/app/models"
	"github.com/coursedesk/coursedesk/internal/pkg/database"
	"github.com/coursedesk/coursedesk/internal/pkg/gateway"
	"github.com/coursedesk/coursedesk/internal/pkg/jobqueue"
	"github.com/coursedesk/coursedesk/internal/pkg/metrics/counter"
	"github.com/coursedesk/coursedesk/internal/pkg/reconcile"
	"github.com/coursedesk/coursedesk/internal/pkg/usercontext"
)

type checkoutRequest struct {
	CourseID uint `json:"course_id" validate:"required,gt=0"`
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	Reason      string `json:"reason" validate:"max=500"`
}

func engineService() *reconcile.Service {
	notifier := jobqueue.NewNotifier(jobqueue.GetManager().GetQueue())
	return reconcile.NewServiceFromDB(database.GetDB(), notifier)
}

// HandleStartCheckout opens (or resumes) a checkout session for the caller.
// The gateway call happens before any ledger write; the session is recorded
// in a single transaction afterwards, so a gateway failure leaves no row
// behind.
func HandleStartCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "course_id is required")
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	course, existing, err := svc.BeginCheckout(ctx, userCtx.UserID, req.CourseID)
	if err != nil {
		return respondEngineError(c, err)
	}

	client := gateway.NewClientFromEnv()

	// Zero-price courses never touch the payment ledger.
	if course.IsFree() {
		enrollment, err := svc.EnrollFree(ctx, userCtx.UserID, req.CourseID)
		if err != nil {
			return respondEngineError(c, err)
		}
		_ = counter.Add(counter.FieldFreeEnrollmentsMade)
		return respondSuccess(c, fiber.StatusCreated, fiber.Map{"enrollment": enrollment})
	}

	if existing != nil {
		return respondResumedSession(c, client, ctx, existing)
	}

	idempotencyKey, err := svc.CheckoutIdempotencyKey(ctx, userCtx.UserID, req.CourseID)
	if err != nil {
		return respondEngineError(c, err)
	}
	session, err := client.CreateCheckoutSession(ctx, course.PriceCents, course.Currency, gateway.SessionMetadata{
		UserID:   userCtx.UserID,
		CourseID: req.CourseID,
	}, idempotencyKey)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return respondEngineError(c, reconcile.ErrGatewayUnavailable)
		}
		return respondEngineError(c, err)
	}

	start, err := svc.RecordCheckoutSession(ctx, userCtx.UserID, course, session, idempotencyKey)
	if err != nil {
		return respondEngineError(c, err)
	}
	if start.Resumed {
		return respondResumedSession(c, client, ctx, start.Payment)
	}

	_ = counter.Add(counter.FieldCheckoutStarted)
	return respondSuccess(c, fiber.StatusCreated, fiber.Map{
		"session_id":   session.ID,
		"redirect_url": session.URL,
		"payment":      start.Payment,
		"resumed":      false,
	})
}

func respondResumedSession(c *fiber.Ctx, client *gateway.Client, ctx context.Context, payment *models.Payment) error {
	_ = counter.Add(counter.FieldCheckoutResumed)

	redirectURL := ""
	if live, err := client.GetCheckoutSession(ctx, payment.ExternalSessionID); err == nil {
		redirectURL = live.URL
	}
	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"session_id":   payment.ExternalSessionID,
		"redirect_url": redirectURL,
		"payment":      payment,
		"resumed":      true,
	})
}

// HandleCancelCheckout abandons a still-created checkout session.
func HandleCancelCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "course_id is required")
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payment, err := svc.CancelPending(ctx, userCtx.UserID, req.CourseID)
	if err != nil {
		return respondEngineError(c, err)
	}

	_ = counter.Add(counter.FieldCheckoutCanceled)
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"payment": payment})
}

// HandleCheckoutStatus reports ledger state plus live gateway session state
// for UI polling. Read-only: reconciliation is driven by webhooks, never by
// a poll.
func HandleCheckoutStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "session_id is required")
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payment, err := svc.PaymentBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "unknown checkout session")
		}
		return respondEngineError(c, err)
	}
	if payment.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return respondError(c, fiber.StatusForbidden, "FORBIDDEN", "not your checkout session")
	}

	response := fiber.Map{"payment": payment}
	if live, err := gateway.NewClientFromEnv().GetCheckoutSession(ctx, sessionID); err == nil {
		response["gateway"] = live
	}
	return respondSuccess(c, fiber.StatusOK, response)
}

// HandleRefund is the admin-only refund path: validate against the ledger,
// ask the gateway for the refund, then apply the succeeded->refunded
// transition and revoke access.
func HandleRefund(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || paymentID == 0 {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid payment id")
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid refund request")
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	payment, amount, err := svc.PrepareRefund(ctx, uint(paymentID), req.AmountCents)
	if err != nil {
		return respondEngineError(c, err)
	}

	if _, err := gateway.NewClientFromEnv().CreateRefund(ctx, payment.ExternalSessionID, amount); err != nil {
		switch {
		case errors.Is(err, gateway.ErrRefundExceedsCaptured):
			return respondEngineError(c, reconcile.ErrRefundExceedsCaptured)
		case errors.Is(err, gateway.ErrUnavailable):
			return respondEngineError(c, reconcile.ErrGatewayUnavailable)
		default:
			return respondEngineError(c, err)
		}
	}

	refunded, err := svc.ApplyRefund(ctx, payment.ID, amount)
	if err != nil {
		return respondEngineError(c, err)
	}

	_ = counter.Add(counter.FieldPaymentRefunded)
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"payment": refunded})
}
