package clientportal

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"handyman_portal_backend/internal/clientportal/token"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/httpkit"
	"handyman_portal_backend/platform/validator"
)

const contextClientIDKey = "clientID"

type Handler struct {
	service  *Service
	minter   *token.Minter
	validate *validator.Validator
}

func NewHandler(service *Service, minter *token.Minter, validate *validator.Validator) *Handler {
	return &Handler{service: service, minter: minter, validate: validate}
}

// CreateSession handles POST /api/v1/client/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, session)
}

// ListCases handles GET /api/v1/client/cases.
func (h *Handler) ListCases(c *gin.Context) {
	clientID := mustClientID(c)
	cases, err := h.service.ListCases(c.Request.Context(), clientID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, cases)
}

// GetCase handles GET /api/v1/client/cases/:id.
func (h *Handler) GetCase(c *gin.Context) {
	clientID := mustClientID(c)
	detail, err := h.service.GetCase(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, detail)
}

// RequireClientToken authenticates requests with a client token. Access
// tokens fail here: they are signed with a different secret and carry a
// different type claim.
func (h *Handler) RequireClientToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		clientID, err := h.minter.Validate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextClientIDKey, clientID)
		c.Next()
	}
}

func extractBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return tok, tok != ""
}

func mustClientID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(contextClientIDKey)
	clientID, _ := id.(uuid.UUID)
	return clientID
}
