package payments

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"handyman_portal_backend/platform/logger"
)

const maxWebhookBody = 1 << 16

// WebhookVerifier verifies a raw webhook and extracts the event.
type WebhookVerifier interface {
	VerifyAndParse(payload []byte, signature string) (WebhookEvent, error)
}

// Handler receives gateway webhooks. The route is unauthenticated; trust
// comes from the signature check, and an unverifiable delivery is
// acknowledged without action so the endpoint leaks nothing to scanners.
type Handler struct {
	verifier   WebhookVerifier
	reconciler *Reconciler
	log        *logger.Logger
}

// NewHandler creates the webhook handler. Verifier may be nil when the
// gateway is unconfigured; every delivery is then acknowledged unprocessed.
func NewHandler(verifier WebhookVerifier, reconciler *Reconciler, log *logger.Logger) *Handler {
	return &Handler{verifier: verifier, reconciler: reconciler, log: log}
}

// HandleWebhook handles POST /api/v1/payments/stripe/webhook.
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if h.verifier == nil {
		h.log.Warn("webhook received but payment gateway not configured")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
			return
		}
		h.log.Warn("webhook signature rejected", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), event); err != nil {
		h.log.Error("webhook reconciliation failed", "type", event.Type, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
