package scheduler

import (
	"context"
	"fmt"

	casesdomain "handyman_portal_backend/internal/cases/domain"
	"handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes asynq tasks: outbox-due tasks become bus events for the
// notification deliverer, and case reminders are re-validated against
// current case state before they fire.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cases  repository.Repository
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		cases:  repository.New(pool),
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	mux.HandleFunc(TaskCaseReminder, w.handleCaseReminder)

	return w, nil
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

// handleCaseReminder fires a reminder only when the visit is still on: the
// case must still be assigned or underway, with a handyman and a schedule.
func (w *Worker) handleCaseReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCaseReminderPayload(task)
	if err != nil {
		return err
	}

	caseID, err := uuid.Parse(payload.CaseID)
	if err != nil {
		return err
	}

	cs, err := w.cases.GetByID(ctx, caseID)
	if err != nil {
		// The case may have been raced away; a reminder for it is moot.
		w.log.Warn("case reminder skipped", "case_id", payload.CaseID, "error", err.Error())
		return nil
	}

	if cs.Status != casesdomain.StatusAssigned && cs.Status != casesdomain.StatusInProgress {
		return nil
	}
	if cs.HandymanID == nil || cs.ScheduledAt == nil {
		return nil
	}

	if w.bus == nil {
		return nil
	}

	return w.bus.PublishSync(ctx, events.CaseReminderDue{
		BaseEvent:   events.NewBaseEvent(),
		CaseID:      cs.ID,
		CaseTitle:   cs.Title,
		HandymanID:  *cs.HandymanID,
		ScheduledAt: *cs.ScheduledAt,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
