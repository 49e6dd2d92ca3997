package constants

// Static route constants
const (
	APIRoute     = "/api/v1"
	WebhookRoute = "/webhooks/payment"
	HealthRoute  = "/healthz"
)
