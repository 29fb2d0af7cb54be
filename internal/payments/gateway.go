// Package payments integrates the Stripe payment gateway: hosted checkout
// sessions for invoices and the webhook that reconciles completed payments.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	invoicesvc "handyman_portal_backend/internal/invoices/service"
	"handyman_portal_backend/platform/config"
)

const (
	metadataInvoiceID = "invoiceId"

	eventCheckoutCompleted = "checkout.session.completed"

	checkoutCurrency = "jpy"
)

// WebhookEvent is the gateway-neutral shape handed to the reconciler.
// InvoiceID is empty when the event carried no invoice metadata.
type WebhookEvent struct {
	Type      string
	InvoiceID string
}

// Gateway talks to Stripe. A nil *Gateway means payments are not
// configured; callers degrade per endpoint rather than failing at startup.
type Gateway struct {
	api           *client.API
	webhookSecret string
	appBaseURL    string
}

// NewGateway creates the Stripe gateway, or nil when no secret key is set.
func NewGateway(cfg config.StripeConfig) *Gateway {
	key := cfg.GetStripeSecretKey()
	if key == "" {
		return nil
	}
	api := &client.API{}
	api.Init(key, nil)
	return &Gateway{
		api:           api,
		webhookSecret: cfg.GetStripeWebhookSecret(),
		appBaseURL:    cfg.GetAppBaseURL(),
	}
}

// Compile-time check that Gateway satisfies the invoices checkout port.
var _ invoicesvc.CheckoutGateway = (*Gateway)(nil)

// CreateCheckout creates a hosted checkout session for the invoice and
// returns its payment page URL. The invoice ID travels in the session
// metadata and comes back on the completion webhook.
func (g *Gateway) CreateCheckout(ctx context.Context, params invoicesvc.CheckoutParams) (string, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(checkoutCurrency),
					UnitAmount: stripe.Int64(params.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.appBaseURL + "/payment/success"),
		CancelURL:  stripe.String(g.appBaseURL + "/payment/cancel"),
		Metadata: map[string]string{
			metadataInvoiceID: params.InvoiceID.String(),
		},
	}
	sessionParams.Context = ctx

	session, err := g.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// VerifyAndParse checks the webhook signature and extracts the
// reconciler-relevant fields. A bad signature is ErrSignature; a verified
// event with an unreadable payload is ErrPayload.
func (g *Gateway) VerifyAndParse(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := WebhookEvent{Type: string(event.Type)}
	if out.Type != eventCheckoutCompleted {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	out.InvoiceID = session.Metadata[metadataInvoiceID]
	return out, nil
}
