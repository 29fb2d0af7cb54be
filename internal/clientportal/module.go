package clientportal

import (
	"handyman_portal_backend/internal/clientportal/token"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/internal/line"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
	"handyman_portal_backend/platform/validator"
)

type Module struct {
	handler *Handler
}

// NewModule assembles the client portal. The LINE client may be nil; the
// session endpoint then answers 503.
func NewModule(lineClient *line.Client, users UserReader, cases CaseReader, invoices InvoiceReader, cfg config.ClientTokenConfig, validate *validator.Validator, log *logger.Logger) *Module {
	minter := token.New(cfg)

	var verifier IdentityVerifier
	if lineClient != nil {
		verifier = lineClient
	}

	svc := NewService(verifier, users, cases, invoices, minter, log)
	return &Module{handler: NewHandler(svc, minter, validate)}
}

func (m *Module) Name() string { return "clientportal" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	client := ctx.V1.Group("/client")
	client.POST("/sessions", ctx.AuthRateLimiter.RateLimit(), m.handler.CreateSession)

	cases := client.Group("/cases")
	cases.Use(m.handler.RequireClientToken())
	cases.GET("", m.handler.ListCases)
	cases.GET("/:id", m.handler.GetCase)
}
