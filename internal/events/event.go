// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"handyman_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Case Domain Events
// =============================================================================

// CaseAssigned is published when a case is assigned or reassigned to a handyman.
type CaseAssigned struct {
	BaseEvent
	CaseID     uuid.UUID `json:"caseId"`
	CaseTitle  string    `json:"caseTitle"`
	HandymanID uuid.UUID `json:"handymanId"`
}

func (e CaseAssigned) EventName() string { return "cases.assigned" }

// CaseStatusChanged is published when a case moves to a new status while a
// handyman is attached. StatusLabel carries the display label for the new
// status so the notification layer does not need lifecycle knowledge.
type CaseStatusChanged struct {
	BaseEvent
	CaseID      uuid.UUID `json:"caseId"`
	CaseTitle   string    `json:"caseTitle"`
	HandymanID  uuid.UUID `json:"handymanId"`
	NewStatus   string    `json:"newStatus"`
	StatusLabel string    `json:"statusLabel"`
}

func (e CaseStatusChanged) EventName() string { return "cases.status_changed" }

// NewMessage is published when a message is posted on a case.
type NewMessage struct {
	BaseEvent
	CaseID     uuid.UUID `json:"caseId"`
	CaseTitle  string    `json:"caseTitle"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
}

func (e NewMessage) EventName() string { return "cases.message.created" }

// CaseReminderDue is published by the scheduler worker when a case's
// scheduled visit is coming up and the assignment still stands.
type CaseReminderDue struct {
	BaseEvent
	CaseID      uuid.UUID `json:"caseId"`
	CaseTitle   string    `json:"caseTitle"`
	HandymanID  uuid.UUID `json:"handymanId"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

func (e CaseReminderDue) EventName() string { return "cases.reminder.due" }

// =============================================================================
// Invoice Domain Events
// =============================================================================

// InvoicePaid is published when an invoice first reaches PAID, regardless of
// whether the manual path or the payment reconciler applied it.
type InvoicePaid struct {
	BaseEvent
	InvoiceID uuid.UUID `json:"invoiceId"`
	CaseID    uuid.UUID `json:"caseId"`
	Amount    int64     `json:"amount"`
}

func (e InvoicePaid) EventName() string { return "invoices.paid" }

// =============================================================================
// Notification Infrastructure Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler worker when a claimed
// outbox record is due for delivery.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
