package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/internal/invoices/domain"
	"handyman_portal_backend/internal/invoices/transport"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/httpkit"
	"handyman_portal_backend/platform/validator"
)

// InvoiceService is the service surface the handler depends on.
type InvoiceService interface {
	Create(ctx context.Context, actorID uuid.UUID, role access.Role, req transport.CreateInvoiceRequest) (transport.InvoiceResponse, error)
	List(ctx context.Context, role access.Role, caseID *string) ([]transport.InvoiceResponse, error)
	Get(ctx context.Context, role access.Role, id string) (transport.InvoiceResponse, error)
	Advance(ctx context.Context, role access.Role, id string, target domain.Status) (transport.InvoiceResponse, error)
	Checkout(ctx context.Context, role access.Role, id string) (transport.CheckoutResponse, error)
	CheckoutQR(ctx context.Context, role access.Role, id string) ([]byte, error)
}

type Handler struct {
	service  InvoiceService
	validate *validator.Validator
}

func New(service InvoiceService, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateInvoiceRequest
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

// List handles GET /api/v1/invoices with an optional ?caseId= filter.
func (h *Handler) List(c *gin.Context) {
	var caseID *string
	if raw, ok := c.GetQuery("caseId"); ok {
		caseID = &raw
	}

	identity := httpkit.MustGetIdentity(c)
	invoices, err := h.service.List(c.Request.Context(), access.Role(identity.Role()), caseID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, invoices)
}

// Get handles GET /api/v1/invoices/:id.
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	inv, err := h.service.Get(c.Request.Context(), access.Role(identity.Role()), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, inv)
}

// Advance handles PATCH /api/v1/invoices/:id.
func (h *Handler) Advance(c *gin.Context) {
	var req transport.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	updated, err := h.service.Advance(c.Request.Context(), access.Role(identity.Role()), c.Param("id"), domain.Status(req.Status))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, updated)
}

// Checkout handles POST /api/v1/invoices/:id/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	session, err := h.service.Checkout(c.Request.Context(), access.Role(identity.Role()), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, session)
}

// CheckoutQR handles GET /api/v1/invoices/:id/checkout/qr.
func (h *Handler) CheckoutQR(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	png, err := h.service.CheckoutQR(c.Request.Context(), access.Role(identity.Role()), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
