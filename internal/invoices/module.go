// Package invoices wires the invoice lifecycle and checkout endpoints.
package invoices

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/events"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/internal/invoices/handler"
	"handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/internal/invoices/service"
	"handyman_portal_backend/platform/logger"
	"handyman_portal_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	repo    repository.Repository
}

// NewModule assembles the invoices module. Gateway may be nil when Stripe
// is not configured.
func NewModule(pool *pgxpool.Pool, cases service.CaseReader, gateway service.CheckoutGateway, bus events.Bus, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cases, gateway, bus, log)
	return &Module{
		handler: handler.New(svc, validate),
		repo:    repo,
	}
}

// Repository exposes invoice persistence for the payment reconciler and the
// end-customer portal.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

func (m *Module) Name() string { return "invoices" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	hq := ctx.Headquarters.Group("/invoices")
	hq.GET("", m.handler.List)
	hq.POST("", m.handler.Create)
	hq.GET("/:id", m.handler.Get)
	hq.PATCH("/:id", m.handler.Advance)

	// Checkout is reachable by any authenticated role: a handyman may start
	// an on-site payment for the customer.
	checkout := ctx.Protected.Group("/invoices")
	checkout.POST("/:id/checkout", m.handler.Checkout)
	checkout.GET("/:id/checkout/qr", m.handler.CheckoutQR)
}
