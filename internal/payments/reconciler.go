package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

var (
	// ErrSignature marks a webhook whose signature did not verify.
	ErrSignature = errors.New("webhook signature verification failed")
	// ErrPayload marks a verified webhook whose payload could not be read.
	ErrPayload = errors.New("webhook payload unreadable")
)

// InvoiceStore is the invoice persistence surface the reconciler needs.
type InvoiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)
}

// Reconciler applies completed checkout events to invoices. It is
// write-once: the absorbing PAID write makes replayed and duplicated
// webhooks harmless, and it never touches case state.
type Reconciler struct {
	invoices InvoiceStore
	bus      events.Bus
	log      *logger.Logger
}

// NewReconciler creates the payment reconciler.
func NewReconciler(invoices InvoiceStore, bus events.Bus, log *logger.Logger) *Reconciler {
	return &Reconciler{invoices: invoices, bus: bus, log: log}
}

// Apply processes one verified webhook event. A nil return acknowledges the
// event; only a failure to persist a legitimate payment returns an error,
// so the gateway retries exactly the cases worth retrying.
func (r *Reconciler) Apply(ctx context.Context, event WebhookEvent) error {
	if event.Type != eventCheckoutCompleted {
		r.log.Info("ignoring webhook event", "type", event.Type)
		return nil
	}

	if event.InvoiceID == "" {
		r.log.Warn("checkout completed without invoice metadata")
		return nil
	}
	invoiceID, err := uuid.Parse(event.InvoiceID)
	if err != nil {
		r.log.Warn("checkout completed with malformed invoice metadata", "invoiceId", event.InvoiceID)
		return nil
	}

	inv, err := r.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			r.log.Warn("checkout completed for unknown invoice", "invoiceId", invoiceID.String())
			return nil
		}
		return err
	}

	applied, err := r.invoices.MarkPaid(ctx, inv.ID)
	if err != nil {
		return err
	}
	if !applied {
		// Already PAID via the manual path or an earlier delivery, or the
		// invoice was cancelled while the checkout was in flight.
		return nil
	}

	r.log.Info("invoice paid via checkout", "invoiceId", inv.ID.String())
	r.bus.Publish(ctx, events.InvoicePaid{
		BaseEvent: events.NewBaseEvent(),
		InvoiceID: inv.ID,
		CaseID:    inv.CaseID,
		Amount:    inv.TotalAmount,
	})
	return nil
}
