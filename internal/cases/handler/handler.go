package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/internal/cases/transport"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/httpkit"
	"handyman_portal_backend/platform/validator"
)

// CaseService is the service surface the handler depends on.
type CaseService interface {
	Create(ctx context.Context, actorID uuid.UUID, role access.Role, req transport.CreateCaseRequest) (transport.CaseResponse, error)
	List(ctx context.Context, actorID uuid.UUID, role access.Role, statusFilter *string) ([]transport.CaseResponse, error)
	Get(ctx context.Context, actorID uuid.UUID, role access.Role, id string) (transport.CaseDetailResponse, error)
	Transition(ctx context.Context, actorID uuid.UUID, role access.Role, id string, req transport.TransitionRequest) (transport.CaseResponse, error)
	ListMessages(ctx context.Context, actorID uuid.UUID, role access.Role, id string) ([]transport.MessageResponse, error)
	CreateMessage(ctx context.Context, actorID uuid.UUID, role access.Role, id string, req transport.CreateMessageRequest) (transport.MessageResponse, error)
	Dashboard(ctx context.Context, role access.Role) (transport.DashboardResponse, error)
}

type Handler struct {
	service  CaseService
	validate *validator.Validator
}

func New(service CaseService, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// Create handles POST /api/v1/cases.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	created, err := h.service.Create(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, created)
}

// List handles GET /api/v1/cases with an optional ?status= filter.
func (h *Handler) List(c *gin.Context) {
	var statusFilter *string
	if raw, ok := c.GetQuery("status"); ok {
		statusFilter = &raw
	}

	identity := httpkit.MustGetIdentity(c)
	cases, err := h.service.List(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), statusFilter)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, cases)
}

// Get handles GET /api/v1/cases/:id.
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	detail, err := h.service.Get(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, detail)
}

// Transition handles PATCH /api/v1/cases/:id.
func (h *Handler) Transition(c *gin.Context) {
	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	updated, err := h.service.Transition(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), c.Param("id"), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, updated)
}

// ListMessages handles GET /api/v1/cases/:id/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	messages, err := h.service.ListMessages(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, messages)
}

// CreateMessage handles POST /api/v1/cases/:id/messages.
func (h *Handler) CreateMessage(c *gin.Context) {
	var req transport.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	msg, err := h.service.CreateMessage(c.Request.Context(), identity.UserID(), access.Role(identity.Role()), c.Param("id"), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, msg)
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	stats, err := h.service.Dashboard(c.Request.Context(), access.Role(identity.Role()))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, stats)
}
