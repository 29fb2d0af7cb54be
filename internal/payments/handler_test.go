package payments

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"handyman_portal_backend/internal/invoices/domain"
	"handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/platform/logger"
)

type fakeVerifier struct {
	event WebhookEvent
	err   error
}

func (f fakeVerifier) VerifyAndParse(payload []byte, signature string) (WebhookEvent, error) {
	return f.event, f.err
}

func newWebhookRouter(verifier WebhookVerifier, store InvoiceStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	h := NewHandler(verifier, NewReconciler(store, &recordingBus{}, log), log)

	r := gin.New()
	r.POST("/webhook", h.HandleWebhook)
	return r
}

func postWebhook(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookVerifiedEventIsApplied(t *testing.T) {
	store := newFakeStore()
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: uuid.New()})
	r := newWebhookRouter(fakeVerifier{event: completedEvent(inv.ID.String())}, store)

	w := postWebhook(r, `{"type":"checkout.session.completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if store.invoices[inv.ID].Status != domain.StatusPaid {
		t.Error("invoice not marked paid")
	}
}

func TestWebhookBadSignatureIsAcknowledged(t *testing.T) {
	store := newFakeStore()
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: uuid.New()})
	r := newWebhookRouter(fakeVerifier{err: fmt.Errorf("%w: mismatch", ErrSignature)}, store)

	w := postWebhook(r, `{"type":"checkout.session.completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 acknowledgement", w.Code)
	}
	if store.invoices[inv.ID].Status != domain.StatusSent {
		t.Error("unverified webhook mutated an invoice")
	}
}

func TestWebhookUnreadablePayloadIsBadRequest(t *testing.T) {
	r := newWebhookRouter(fakeVerifier{err: fmt.Errorf("%w: bad json", ErrPayload)}, newFakeStore())

	w := postWebhook(r, `{"type":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookEmptyBodyIsBadRequest(t *testing.T) {
	r := newWebhookRouter(fakeVerifier{}, newFakeStore())

	w := postWebhook(r, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookUnconfiguredGatewayAcknowledges(t *testing.T) {
	r := newWebhookRouter(nil, newFakeStore())

	w := postWebhook(r, `{"type":"checkout.session.completed"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestWebhookStoreFailureIsServerError(t *testing.T) {
	store := newFakeStore()
	inv := store.put(repository.Invoice{Status: domain.StatusSent, CaseID: uuid.New()})
	store.markPaidErr = fmt.Errorf("connection reset")
	r := newWebhookRouter(fakeVerifier{event: completedEvent(inv.ID.String())}, store)

	w := postWebhook(r, `{"type":"checkout.session.completed"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the gateway retries", w.Code)
	}
}
