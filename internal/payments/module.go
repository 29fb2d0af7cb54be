package payments

import (
	"handyman_portal_backend/internal/events"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/platform/logger"
)

type Module struct {
	handler *Handler
}

// NewModule assembles the payments module. Gateway may be nil when Stripe
// is unconfigured.
func NewModule(gateway *Gateway, invoices InvoiceStore, bus events.Bus, log *logger.Logger) *Module {
	reconciler := NewReconciler(invoices, bus, log)

	// A typed-nil *Gateway must become an untyped nil interface so the
	// handler's nil check works.
	var verifier WebhookVerifier
	if gateway != nil {
		verifier = gateway
	}

	return &Module{handler: NewHandler(verifier, reconciler, log)}
}

func (m *Module) Name() string { return "payments" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// No session auth here; the Stripe signature check is the trust boundary.
	ctx.V1.POST("/payments/stripe/webhook", m.handler.HandleWebhook)
}
