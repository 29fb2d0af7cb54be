package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/notification/outbox"
	"handyman_portal_backend/platform/logger"
)

const (
	pushTimeout = 10 * time.Second
	maxAttempts = 5
)

// Pusher sends one text message to a LINE user.
type Pusher interface {
	Push(ctx context.Context, lineUserID string, text string) error
}

// OutboxStore is the outbox surface the deliverer needs.
type OutboxStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

// Deliverer pushes claimed outbox records over LINE. Delivery is
// best-effort: a failed push returns the record to pending until the
// attempt budget runs out, and nothing here ever propagates to a lifecycle
// caller.
type Deliverer struct {
	outbox OutboxStore
	pusher Pusher
	log    *logger.Logger
}

// NewDeliverer creates the outbox deliverer. Pusher may be nil when the
// LINE channel is unconfigured; records are then marked succeeded unsent.
func NewDeliverer(ob OutboxStore, pusher Pusher, log *logger.Logger) *Deliverer {
	return &Deliverer{outbox: ob, pusher: pusher, log: log}
}

// Subscribe registers the deliverer for outbox-due events on the bus.
func (d *Deliverer) Subscribe(bus events.Bus) {
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(d.handleOutboxDue))
}

func (d *Deliverer) handleOutboxDue(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.NotificationOutboxDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return d.Deliver(ctx, ev.OutboxID)
}

// Deliver sends one outbox record.
func (d *Deliverer) Deliver(ctx context.Context, id uuid.UUID) error {
	rec, err := d.outbox.GetByID(ctx, id)
	if err != nil {
		d.log.NotificationError("outbox_load", id.String(), err)
		return nil
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := d.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		d.log.NotificationError(rec.Kind, rec.ID.String(), err)
		return nil
	}
	rec.Attempts++

	var msg outbox.Message
	if err := json.Unmarshal(rec.Payload, &msg); err != nil {
		d.fail(ctx, rec, fmt.Errorf("unmarshal payload: %w", err))
		return nil
	}

	if d.pusher == nil {
		// Channel not configured: drop the message rather than let the
		// outbox grow without bound.
		_ = d.outbox.MarkSucceeded(ctx, rec.ID)
		return nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := d.pusher.Push(pushCtx, msg.To, msg.Text); err != nil {
		d.retryOrFail(ctx, rec, err)
		return nil
	}

	if err := d.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		d.log.NotificationError(rec.Kind, rec.ID.String(), err)
	}
	return nil
}

func (d *Deliverer) retryOrFail(ctx context.Context, rec outbox.Record, cause error) {
	d.log.NotificationError(rec.Kind, rec.ID.String(), cause)
	if rec.Attempts >= maxAttempts {
		d.fail(ctx, rec, cause)
		return
	}
	msg := cause.Error()
	if err := d.outbox.MarkPending(ctx, rec.ID, &msg); err != nil {
		d.log.NotificationError(rec.Kind, rec.ID.String(), err)
	}
}

func (d *Deliverer) fail(ctx context.Context, rec outbox.Record, cause error) {
	if err := d.outbox.MarkFailed(ctx, rec.ID, cause.Error()); err != nil {
		d.log.NotificationError(rec.Kind, rec.ID.String(), err)
	}
}
