package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursedesk/coursedesk/internal/pkg/env"
	"github.com/coursedesk/coursedesk/internal/pkg/gateway"
	"github.com/coursedesk/coursedesk/internal/pkg/metrics/counter"
	"github.com/coursedesk/coursedesk/internal/pkg/reconcile"
)

// HandlePaymentWebhook receives gateway notifications. The gateway retries
// non-2xx responses, so anything already handled (duplicate delivery, stale
// event for a payment that moved on) must still be acknowledged with 200.
// Only an invalid signature or an unparseable body earns a 400.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	body := c.Body()
	_ = counter.Add(counter.FieldWebhookReceived)

	secret := env.GetEnv("GATEWAY_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Printf("[Webhook] GATEWAY_WEBHOOK_SECRET not configured, rejecting event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"received": false})
	}

	// An unsigned body is rejected before anything is parsed or persisted:
	// letting it claim the dedup slot would make the genuine delivery of the
	// same event id resolve as a duplicate and never apply.
	if !gateway.VerifyWebhookSignature(body, c.Get("CourseDesk-Signature"), secret) {
		_ = counter.Add(counter.FieldWebhookInvalidSig)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false, "error": reconcile.ErrInvalidSignature.Message})
	}

	svc := engineService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := svc.ProcessWebhook(ctx, body)
	if err != nil {
		var engineErr *reconcile.Error
		if errors.As(err, &engineErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false, "error": engineErr.Message})
		}
		// Storage or unexpected failure: let the gateway retry the delivery.
		log.Printf("[Webhook] processing failed for event %s: %v", outcomeEventID(outcome), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"received": false})
	}

	if outcome.Duplicate {
		_ = counter.Add(counter.FieldWebhookDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	if !outcome.Ignored {
		switch outcome.EventType {
		case gateway.EventCheckoutSessionCompleted:
			_ = counter.Add(counter.FieldPaymentSucceeded)
		case gateway.EventPaymentIntentFailed:
			_ = counter.Add(counter.FieldPaymentFailed)
		case gateway.EventRefundUpdated:
			_ = counter.Add(counter.FieldPaymentRefunded)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

func outcomeEventID(outcome *reconcile.WebhookOutcome) string {
	if outcome == nil {
		return "unknown"
	}
	return outcome.EventID
}
