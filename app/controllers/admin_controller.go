package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursedesk/coursedesk/app/repository"
	"github.com/coursedesk/coursedesk/internal/pkg/jobqueue"
	"github.com/coursedesk/coursedesk/internal/pkg/metrics/counter"
)

// HandleAdminStats exposes live payment counters, a daily bucket and job
// queue depth for operations dashboards.
func HandleAdminStats(c *fiber.Ctx) error {
	live, err := counter.Snapshot()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not read counters")
	}

	day := time.Now().UTC()
	if q := c.Query("day"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "day must be YYYY-MM-DD")
		}
		day = parsed
	}
	daily, err := counter.Daily(day)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not read counters")
	}

	queue := jobqueue.GetManager().GetQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobStats, _ := queue.GetJobStats(ctx)
	pending, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)

	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"counters": fiber.Map{
			"live":  live,
			"day":   day.Format("2006-01-02"),
			"daily": daily,
		},
		"jobs": fiber.Map{
			"stats":      jobStats,
			"pending":    pending,
			"processing": processing,
		},
	})
}

// HandleAdminListPayments pages through the payment ledger.
func HandleAdminListPayments(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	repos := repository.GetGlobalRepositories()

	var (
		payments interface{}
		err      error
	)
	if q := c.Query("user_id"); q != "" {
		userID, perr := strconv.ParseUint(q, 10, 32)
		if perr != nil {
			return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid user_id")
		}
		payments, err = repos.Payment.ListByUser(uint(userID), (page-1)*perPage, perPage)
	} else {
		payments, err = repos.Payment.List((page-1)*perPage, perPage)
	}
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load payments")
	}

	total, err := repos.Payment.Count()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load payments")
	}

	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"payments": payments,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// HandleAdminListWebhookFailures lists verified events whose apply step
// failed, for manual follow-up.
func HandleAdminListWebhookFailures(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	events, err := repository.GetGlobalRepositories().WebhookEvent.ListFailed(limit)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load webhook events")
	}
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"events": events})
}
