package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/invoices/domain"
	"handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

type fakeStore struct {
	invoices    map[uuid.UUID]repository.Invoice
	markPaidErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{invoices: map[uuid.UUID]repository.Invoice{}}
}

func (f *fakeStore) put(inv repository.Invoice) repository.Invoice {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	f.invoices[inv.ID] = inv
	return inv
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, apperr.NotFound("invoice not found")
	}
	return inv, nil
}

func (f *fakeStore) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	if f.markPaidErr != nil {
		return false, f.markPaidErr
	}
	inv, ok := f.invoices[id]
	if !ok || (inv.Status != domain.StatusDraft && inv.Status != domain.StatusSent) {
		return false, nil
	}
	inv.Status = domain.StatusPaid
	now := time.Now()
	if inv.PaidAt == nil {
		inv.PaidAt = &now
	}
	f.invoices[id] = inv
	return true, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func completedEvent(invoiceID string) WebhookEvent {
	return WebhookEvent{Type: eventCheckoutCompleted, InvoiceID: invoiceID}
}

func TestApplyFirstDeliveryMarksPaid(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	caseID := uuid.New()
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: caseID, TotalAmount: 9800})
	rec := NewReconciler(store, bus, logger.New("test"))

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stored := store.invoices[inv.ID]
	if stored.Status != domain.StatusPaid || stored.PaidAt == nil {
		t.Errorf("invoice = %v/%v, want PAID with stamp", stored.Status, stored.PaidAt)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if ev := bus.published[0].(events.InvoicePaid); ev.CaseID != caseID || ev.Amount != 9800 {
		t.Errorf("event = %+v", ev)
	}
}

func TestApplyDuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: uuid.New()})
	rec := NewReconciler(store, bus, logger.New("test"))

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	firstPaidAt := store.invoices[inv.ID].PaidAt

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err != nil {
		t.Fatalf("duplicate Apply() error = %v, want acknowledged no-op", err)
	}
	if !store.invoices[inv.ID].PaidAt.Equal(*firstPaidAt) {
		t.Error("duplicate delivery rewrote paid_at")
	}
	if len(bus.published) != 1 {
		t.Errorf("published %d events across duplicate deliveries, want 1", len(bus.published))
	}
}

func TestApplyAfterManualPaidIsNoOp(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	paidAt := time.Now().Add(-time.Hour)
	inv := store.put(repository.Invoice{Status: domain.StatusPaid, PaidAt: &paidAt, CaseID: uuid.New()})
	rec := NewReconciler(store, bus, logger.New("test"))

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !store.invoices[inv.ID].PaidAt.Equal(paidAt) {
		t.Error("webhook rewrote paid_at set by the manual path")
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events, want 0", len(bus.published))
	}
}

func TestApplyOnCancelledInvoiceIsNoOp(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	inv := store.put(repository.Invoice{Status: domain.StatusCancelled, CaseID: uuid.New()})
	rec := NewReconciler(store, bus, logger.New("test"))

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err != nil {
		t.Fatalf("Apply() error = %v, want acknowledged no-op", err)
	}

	stored := store.invoices[inv.ID]
	if stored.Status != domain.StatusCancelled {
		t.Errorf("late checkout resurrected a cancelled invoice: status = %v", stored.Status)
	}
	if stored.PaidAt != nil {
		t.Error("cancelled invoice was stamped paid_at")
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events, want 0", len(bus.published))
	}
}

func TestApplyAcknowledgesWithoutAction(t *testing.T) {
	tests := []struct {
		name  string
		event WebhookEvent
	}{
		{"other event type", WebhookEvent{Type: "payment_intent.succeeded"}},
		{"missing invoice metadata", completedEvent("")},
		{"malformed invoice metadata", completedEvent("not-a-uuid")},
		{"unknown invoice", completedEvent(uuid.New().String())},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			bus := &recordingBus{}
			rec := NewReconciler(store, bus, logger.New("test"))

			if err := rec.Apply(context.Background(), tc.event); err != nil {
				t.Errorf("Apply() error = %v, want acknowledged no-op", err)
			}
			if len(bus.published) != 0 {
				t.Errorf("published %d events, want 0", len(bus.published))
			}
		})
	}
}

func TestApplyStoreFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: uuid.New()})
	store.markPaidErr = errors.New("connection reset")
	rec := NewReconciler(store, &recordingBus{}, logger.New("test"))

	if err := rec.Apply(context.Background(), completedEvent(inv.ID.String())); err == nil {
		t.Error("Apply() = nil, want error so the gateway retries")
	}
}
