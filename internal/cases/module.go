// Package cases wires the case lifecycle endpoints.
package cases

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/cases/handler"
	"handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/cases/service"
	"handyman_portal_backend/internal/events"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
	"handyman_portal_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	repo    repository.Repository
}

// NewModule assembles the cases module. Reminders may be nil when Redis is
// not available.
func NewModule(pool *pgxpool.Pool, bus events.Bus, reminders service.ReminderScheduler, cfg config.CaseConfig, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, reminders, cfg, log)
	return &Module{
		handler: handler.New(svc, validate),
		repo:    repo,
	}
}

// Repository exposes case reads for modules that need case facts, such as
// the end-customer portal.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

func (m *Module) Name() string { return "cases" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	cases := ctx.Protected.Group("/cases")
	cases.GET("", m.handler.List)
	cases.POST("", m.handler.Create)
	cases.GET("/:id", m.handler.Get)
	cases.PATCH("/:id", m.handler.Transition)
	cases.GET("/:id/messages", m.handler.ListMessages)
	cases.POST("/:id/messages", m.handler.CreateMessage)

	ctx.Headquarters.GET("/dashboard", m.handler.Dashboard)
}
