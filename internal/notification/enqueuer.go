package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	authrepo "handyman_portal_backend/internal/auth/repository"
	casesrepo "handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/notification/outbox"
	"handyman_portal_backend/platform/logger"
)

// UserReader resolves notification recipients.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (authrepo.User, error)
}

// CaseReader resolves case facts for events that do not carry them.
type CaseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (casesrepo.Case, error)
}

// OutboxWriter is the outbox surface the enqueuer needs.
type OutboxWriter interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

// Enqueuer listens for domain events and writes outbox records. A recipient
// without a LINE account on file is skipped silently; enqueue failures are
// logged and swallowed so notification trouble never reaches a lifecycle
// caller.
type Enqueuer struct {
	outbox OutboxWriter
	users  UserReader
	cases  CaseReader
	log    *logger.Logger
}

// NewEnqueuer creates the event-to-outbox bridge.
func NewEnqueuer(ob OutboxWriter, users UserReader, cases CaseReader, log *logger.Logger) *Enqueuer {
	return &Enqueuer{outbox: ob, users: users, cases: cases, log: log}
}

// Subscribe registers the enqueuer on the event bus.
func (e *Enqueuer) Subscribe(bus events.Bus) {
	bus.Subscribe(events.CaseAssigned{}.EventName(), events.HandlerFunc(e.handleCaseAssigned))
	bus.Subscribe(events.CaseStatusChanged{}.EventName(), events.HandlerFunc(e.handleCaseStatusChanged))
	bus.Subscribe(events.NewMessage{}.EventName(), events.HandlerFunc(e.handleNewMessage))
	bus.Subscribe(events.InvoicePaid{}.EventName(), events.HandlerFunc(e.handleInvoicePaid))
	bus.Subscribe(events.CaseReminderDue{}.EventName(), events.HandlerFunc(e.handleCaseReminderDue))
}

func (e *Enqueuer) handleCaseAssigned(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.CaseAssigned)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	e.enqueueForUser(ctx, ev.HandymanID, ev.EventName(), TemplateCaseAssigned, caseAssignedText(ev.CaseTitle))
	return nil
}

func (e *Enqueuer) handleCaseStatusChanged(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.CaseStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	e.enqueueForUser(ctx, ev.HandymanID, ev.EventName(), TemplateCaseStatusChanged,
		caseStatusChangedText(ev.CaseTitle, ev.StatusLabel))
	return nil
}

func (e *Enqueuer) handleNewMessage(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.NewMessage)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	cs, err := e.cases.GetByID(ctx, ev.CaseID)
	if err != nil {
		e.log.NotificationError(ev.EventName(), ev.CaseID.String(), err)
		return nil
	}
	// Only the case handyman is notified, and not about their own message.
	if cs.HandymanID == nil || *cs.HandymanID == ev.SenderID {
		return nil
	}
	e.enqueueForUser(ctx, *cs.HandymanID, ev.EventName(), TemplateNewMessage,
		newMessageText(ev.CaseTitle, ev.SenderName))
	return nil
}

func (e *Enqueuer) handleInvoicePaid(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.InvoicePaid)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	cs, err := e.cases.GetByID(ctx, ev.CaseID)
	if err != nil {
		e.log.NotificationError(ev.EventName(), ev.CaseID.String(), err)
		return nil
	}
	if cs.HandymanID == nil {
		return nil
	}
	e.enqueueForUser(ctx, *cs.HandymanID, ev.EventName(), TemplateInvoicePaid, invoicePaidText(cs.Title))
	return nil
}

func (e *Enqueuer) handleCaseReminderDue(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.CaseReminderDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	e.enqueueForUser(ctx, ev.HandymanID, ev.EventName(), TemplateCaseReminder,
		caseReminderText(ev.CaseTitle, ev.ScheduledAt))
	return nil
}

func (e *Enqueuer) enqueueForUser(ctx context.Context, userID uuid.UUID, kind, template, text string) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		e.log.NotificationError(kind, userID.String(), err)
		return
	}
	if user.LineUserID == nil || *user.LineUserID == "" {
		e.log.Debug("skipping notification, recipient has no LINE account", "kind", kind, "user_id", userID.String())
		return
	}

	_, err = e.outbox.Insert(ctx, outbox.InsertParams{
		Kind:     kind,
		Template: template,
		Payload:  outbox.Message{To: *user.LineUserID, Text: text},
	})
	if err != nil {
		e.log.NotificationError(kind, userID.String(), err)
	}
}
