package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/coursedesk/coursedesk/app/controllers"
	"github.com/coursedesk/coursedesk/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{Max: 120}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Public routes
	v1.Post("/auth/register", controllers.HandleRegister)
	v1.Post("/auth/login", controllers.HandleLogin)
	v1.Get("/courses", controllers.HandleListCourses)
	v1.Get("/courses/:slug", controllers.HandleGetCourse)

	// API-key protected routes
	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Delete("/auth/api-key", controllers.HandleRevokeAPIKey)

	authed.Post("/checkout", controllers.HandleStartCheckout)
	authed.Delete("/checkout", controllers.HandleCancelCheckout)
	authed.Get("/checkout/:session_id", controllers.HandleCheckoutStatus)

	authed.Post("/enrollments/free", controllers.HandleFreeEnroll)
	authed.Get("/enrollments", controllers.HandleListEnrollments)

	// Admin routes
	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.Get("/stats", controllers.HandleAdminStats)
	admin.Get("/payments", controllers.HandleAdminListPayments)
	admin.Get("/webhook-failures", controllers.HandleAdminListWebhookFailures)
	admin.Post("/payments/:id/refund", controllers.HandleRefund)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
