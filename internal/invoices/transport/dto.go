// Package transport defines the wire shapes for the invoices module.
package transport

import "time"

// CreateInvoiceItemRequest is one billable line on a new invoice. Amount is
// never accepted from the wire; it is recomputed server-side.
type CreateInvoiceItemRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
}

// CreateInvoiceRequest is the payload for creating an invoice or estimate.
type CreateInvoiceRequest struct {
	CaseID string                     `json:"caseId" validate:"required,uuid"`
	Type   string                     `json:"type" validate:"required,oneof=INVOICE ESTIMATE"`
	Note   *string                    `json:"note,omitempty"`
	Items  []CreateInvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

// AdvanceRequest is the payload for an invoice status transition.
type AdvanceRequest struct {
	Status string `json:"status" validate:"required"`
}

// InvoiceItemResponse is the wire shape of a billed line.
type InvoiceItemResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Amount    int64  `json:"amount"`
}

// CaseSummary is the case reference embedded in an invoice response.
type CaseSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// IssuerSummary is the issuing user embedded in an invoice response.
type IssuerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InvoiceResponse is the wire shape of an invoice.
type InvoiceResponse struct {
	ID          string                `json:"id"`
	Case        CaseSummary           `json:"case"`
	IssuedBy    IssuerSummary         `json:"issuedBy"`
	Type        string                `json:"type"`
	Status      string                `json:"status"`
	TotalAmount int64                 `json:"totalAmount"`
	Note        *string               `json:"note,omitempty"`
	Items       []InvoiceItemResponse `json:"items"`
	IssuedAt    *time.Time            `json:"issuedAt,omitempty"`
	PaidAt      *time.Time            `json:"paidAt,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// CheckoutResponse carries the hosted payment page URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}
