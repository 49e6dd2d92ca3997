package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursedesk/coursedesk/app/controllers"
	"github.com/coursedesk/coursedesk/internal/pkg/constants"
)

type WebhookRouter struct {
}

// InstallRouter registers the gateway-facing delivery endpoint. No auth
// middleware here: the signature header is the authentication.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.WebhookRoute, controllers.HandlePaymentWebhook)

	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
