package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"handyman_portal_backend/internal/auth/transport"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/httpkit"
	"handyman_portal_backend/platform/validator"
)

// AuthService is the service surface the handler depends on.
type AuthService interface {
	Login(ctx context.Context, req transport.CreateSessionRequest) (transport.SessionResponse, error)
	GetUser(ctx context.Context, id string) (transport.UserResponse, error)
}

type Handler struct {
	service  AuthService
	validate *validator.Validator
}

func New(service AuthService, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// CreateSession exchanges a provider ID token for a portal access token.
// POST /api/v1/auth/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req transport.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, session)
}

// Me returns the authenticated user.
// GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	user, err := h.service.GetUser(c.Request.Context(), identity.UserID().String())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, user)
}
