// Package service implements the invoice lifecycle: creation with a
// server-side amount snapshot, the guarded status advance with an absorbing
// PAID terminal, and payment checkout.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"handyman_portal_backend/internal/access"
	casesrepo "handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/invoices/domain"
	"handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/internal/invoices/transport"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

const checkoutQRSize = 256

// CheckoutParams describes a hosted payment session request.
type CheckoutParams struct {
	InvoiceID   uuid.UUID
	Amount      int64
	Description string
}

// CheckoutGateway creates hosted payment sessions. The Stripe adapter
// implements it; a nil gateway means payments are not configured.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (string, error)
}

// CaseReader resolves case existence for invoice creation.
type CaseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (casesrepo.Case, error)
}

// Service provides invoice lifecycle operations.
type Service struct {
	repo    repository.Repository
	cases   CaseReader
	gateway CheckoutGateway
	bus     events.Bus
	log     *logger.Logger
}

// New creates the invoices service. Gateway may be nil when the payment
// channel is unconfigured; checkout then fails with 503.
func New(repo repository.Repository, cases CaseReader, gateway CheckoutGateway, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cases: cases, gateway: gateway, bus: bus, log: log}
}

// Create issues a new invoice or estimate in DRAFT. Line amounts are
// recomputed from quantity and unit price; the wire value is never trusted.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, role access.Role, req transport.CreateInvoiceRequest) (transport.InvoiceResponse, error) {
	if !access.CanManageInvoices(role) {
		return transport.InvoiceResponse{}, apperr.Forbidden("only headquarters can manage invoices")
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		return transport.InvoiceResponse{}, apperr.Validation("invalid case ID")
	}
	if _, err := s.cases.GetByID(ctx, caseID); err != nil {
		return transport.InvoiceResponse{}, err
	}

	invType := domain.Type(req.Type)
	if !domain.IsKnownType(invType) {
		return transport.InvoiceResponse{}, apperr.Validation("unknown invoice type")
	}
	if len(req.Items) == 0 {
		return transport.InvoiceResponse{}, apperr.Validation("at least one item is required")
	}

	items := make([]repository.ItemParams, 0, len(req.Items))
	var total int64
	for _, item := range req.Items {
		if item.Name == "" {
			return transport.InvoiceResponse{}, apperr.Validation("item name is required")
		}
		if item.Quantity <= 0 {
			return transport.InvoiceResponse{}, apperr.Validation("item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return transport.InvoiceResponse{}, apperr.Validation("item unit price cannot be negative")
		}
		amount := int64(item.Quantity) * item.UnitPrice
		total += amount
		items = append(items, repository.ItemParams{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    amount,
		})
	}

	created, err := s.repo.Create(ctx, repository.CreateParams{
		CaseID:      caseID,
		IssuedByID:  actorID,
		Type:        invType,
		Note:        req.Note,
		TotalAmount: total,
		Items:       items,
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(created), nil
}

// List returns invoices, optionally narrowed to one case.
func (s *Service) List(ctx context.Context, role access.Role, caseID *string) ([]transport.InvoiceResponse, error) {
	if !access.CanManageInvoices(role) {
		return nil, apperr.Forbidden("only headquarters can manage invoices")
	}

	filter := repository.ListFilter{}
	if caseID != nil {
		id, err := uuid.Parse(*caseID)
		if err != nil {
			return nil, apperr.Validation("invalid case ID")
		}
		filter.CaseID = &id
	}

	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]transport.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	return out, nil
}

// Get returns a single invoice.
func (s *Service) Get(ctx context.Context, role access.Role, id string) (transport.InvoiceResponse, error) {
	if !access.CanManageInvoices(role) {
		return transport.InvoiceResponse{}, apperr.Forbidden("only headquarters can manage invoices")
	}
	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(inv), nil
}

// Advance moves an invoice to a new status. Advancing to PAID when already
// PAID is a no-op success; every other write carries an expected-prior-status
// guard, so a lost race surfaces as a conflict.
func (s *Service) Advance(ctx context.Context, role access.Role, id string, target domain.Status) (transport.InvoiceResponse, error) {
	if !access.CanManageInvoices(role) {
		return transport.InvoiceResponse{}, apperr.Forbidden("only headquarters can manage invoices")
	}
	if !domain.IsKnownStatus(target) {
		return transport.InvoiceResponse{}, apperr.Validation("unknown status")
	}

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	// Absorbing terminal: repeating the PAID request changes nothing.
	if target == domain.StatusPaid && inv.Status == domain.StatusPaid {
		return toInvoiceResponse(inv), nil
	}
	if !domain.CanTransition(inv.Status, target) {
		return transport.InvoiceResponse{}, apperr.Validation("invalid status transition")
	}

	if target == domain.StatusPaid {
		return s.applyPaid(ctx, inv)
	}

	updated, err := s.repo.Advance(ctx, repository.AdvanceParams{
		ID:             inv.ID,
		ExpectedStatus: inv.Status,
		NewStatus:      target,
		StampIssuedAt:  target == domain.StatusSent,
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(updated), nil
}

// applyPaid runs the absorbing PAID write shared with the payment
// reconciler. Losing the race to another PAID application is success, not
// conflict: the invoice is paid either way.
func (s *Service) applyPaid(ctx context.Context, inv repository.Invoice) (transport.InvoiceResponse, error) {
	applied, err := s.repo.MarkPaid(ctx, inv.ID)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	if applied {
		s.bus.Publish(ctx, events.InvoicePaid{
			BaseEvent: events.NewBaseEvent(),
			InvoiceID: inv.ID,
			CaseID:    inv.CaseID,
			Amount:    inv.TotalAmount,
		})
	}
	updated, err := s.repo.GetByID(ctx, inv.ID)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(updated), nil
}

// Checkout creates a hosted payment session for the invoice.
func (s *Service) Checkout(ctx context.Context, role access.Role, id string) (transport.CheckoutResponse, error) {
	url, err := s.checkoutURL(ctx, role, id)
	if err != nil {
		return transport.CheckoutResponse{}, err
	}
	return transport.CheckoutResponse{URL: url}, nil
}

// CheckoutQR renders the checkout URL as a PNG QR code for on-site payment.
func (s *Service) CheckoutQR(ctx context.Context, role access.Role, id string) ([]byte, error) {
	url, err := s.checkoutURL(ctx, role, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(url, qrcode.Medium, checkoutQRSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to render QR code", err)
	}
	return png, nil
}

func (s *Service) checkoutURL(ctx context.Context, role access.Role, id string) (string, error) {
	if !access.CanCreateCheckout(role) {
		return "", apperr.Forbidden("forbidden")
	}

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		return "", err
	}
	if inv.Status == domain.StatusPaid {
		return "", apperr.BadRequest("invoice is already paid")
	}
	if s.gateway == nil {
		return "", apperr.Unavailable("payment gateway not configured")
	}

	url, err := s.gateway.CreateCheckout(ctx, CheckoutParams{
		InvoiceID:   inv.ID,
		Amount:      inv.TotalAmount,
		Description: fmt.Sprintf("%s - %s", inv.CaseTitle, string(inv.Type)),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to create checkout session", err)
	}
	return url, nil
}

func (s *Service) loadInvoice(ctx context.Context, id string) (repository.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return repository.Invoice{}, apperr.BadRequest("invalid invoice ID")
	}
	return s.repo.GetByID(ctx, invoiceID)
}

func toInvoiceResponse(inv repository.Invoice) transport.InvoiceResponse {
	items := make([]transport.InvoiceItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, transport.InvoiceItemResponse{
			ID:        item.ID.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    item.Amount,
		})
	}
	return transport.InvoiceResponse{
		ID:          inv.ID.String(),
		Case:        transport.CaseSummary{ID: inv.CaseID.String(), Title: inv.CaseTitle},
		IssuedBy:    transport.IssuerSummary{ID: inv.IssuedByID.String(), Name: inv.IssuerName},
		Type:        string(inv.Type),
		Status:      string(inv.Status),
		TotalAmount: inv.TotalAmount,
		Note:        inv.Note,
		Items:       items,
		IssuedAt:    inv.IssuedAt,
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}
