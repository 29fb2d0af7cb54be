package notification

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/line"
	"handyman_portal_backend/internal/notification/outbox"
	"handyman_portal_backend/platform/logger"
)

// Module bundles the notification pipeline: the enqueuer runs in the API
// process, the deliverer in the scheduler worker.
type Module struct {
	Outbox    *outbox.Repository
	Enqueuer  *Enqueuer
	Deliverer *Deliverer
}

// NewModule assembles the notification pipeline. LINE client may be nil.
func NewModule(pool *pgxpool.Pool, users UserReader, cases CaseReader, lineClient *line.Client, log *logger.Logger) *Module {
	ob := outbox.New(pool)

	// A typed-nil *line.Client must become an untyped nil interface so the
	// deliverer's nil check works.
	var pusher Pusher
	if lineClient != nil {
		pusher = lineClient
	}

	return &Module{
		Outbox:    ob,
		Enqueuer:  NewEnqueuer(ob, users, cases, log),
		Deliverer: NewDeliverer(ob, pusher, log),
	}
}

// SubscribeEnqueuer registers the domain-event listeners (API process).
func (m *Module) SubscribeEnqueuer(bus events.Bus) {
	m.Enqueuer.Subscribe(bus)
}

// SubscribeDeliverer registers the outbox-due listener (scheduler process).
func (m *Module) SubscribeDeliverer(bus events.Bus) {
	m.Deliverer.Subscribe(bus)
}
