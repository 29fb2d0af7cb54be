// Package clientportal serves the read-only surface end customers reach
// from the LINE mini app, scoped by short-lived signed client tokens
// instead of a caller-supplied user ID.
package clientportal

import "time"

// CreateSessionRequest exchanges a LINE ID token for a client token.
type CreateSessionRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// SessionResponse carries the minted client token.
type SessionResponse struct {
	ClientToken string `json:"clientToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// CaseResponse is the customer-facing shape of a case.
type CaseResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Address      *string    `json:"address,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	Status       string     `json:"status"`
	HandymanName *string    `json:"handymanName,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// InvoiceSummary is the customer-facing shape of a billing document.
type InvoiceSummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
}

// CaseDetailResponse adds billing documents to the case shape.
type CaseDetailResponse struct {
	CaseResponse
	Invoices []InvoiceSummary `json:"invoices"`
}
