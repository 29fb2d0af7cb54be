// Package service implements the case lifecycle: creation, the guarded
// status transition that is the sole mutator of case state, the message
// thread and the headquarters dashboard.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/internal/cases/domain"
	"handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/cases/transport"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
)

const recentCasesLimit = 5

// reminderLead is how long before the scheduled visit the reminder fires.
const reminderLead = time.Hour

// ReminderScheduler enqueues a delayed reminder for a scheduled visit. The
// asynq client implements it; nil means reminders are disabled.
type ReminderScheduler interface {
	ScheduleCaseReminder(ctx context.Context, caseID uuid.UUID, runAt time.Time) error
}

// Service provides case lifecycle operations.
type Service struct {
	repo      repository.Repository
	bus       events.Bus
	reminders ReminderScheduler
	cfg       config.CaseConfig
	log       *logger.Logger
}

// New creates the cases service.
func New(repo repository.Repository, bus events.Bus, reminders ReminderScheduler, cfg config.CaseConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, reminders: reminders, cfg: cfg, log: log}
}

// Create opens a new case. Only headquarters can create cases. The case
// starts PENDING; when a handyman is supplied and assign-on-create is
// enabled it starts ASSIGNED and the assignment event fires immediately.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, role access.Role, req transport.CreateCaseRequest) (transport.CaseResponse, error) {
	if !access.CanCreateCase(role) {
		return transport.CaseResponse{}, apperr.Forbidden("only headquarters can create cases")
	}

	handymanID, err := parseOptionalUUID(req.HandymanID)
	if err != nil {
		return transport.CaseResponse{}, apperr.Validation("invalid handyman ID")
	}
	clientID, err := parseOptionalUUID(req.ClientID)
	if err != nil {
		return transport.CaseResponse{}, apperr.Validation("invalid client ID")
	}

	status := domain.StatusPending
	if handymanID != nil && s.cfg.GetAssignOnCreate() {
		status = domain.StatusAssigned
	}

	created, err := s.repo.Create(ctx, repository.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		ScheduledAt: req.ScheduledAt,
		Status:      status,
		HandymanID:  handymanID,
		ClientID:    clientID,
	})
	if err != nil {
		return transport.CaseResponse{}, err
	}

	if status == domain.StatusAssigned && created.HandymanID != nil {
		s.bus.Publish(ctx, events.CaseAssigned{
			BaseEvent:  events.NewBaseEvent(),
			CaseID:     created.ID,
			CaseTitle:  created.Title,
			HandymanID: *created.HandymanID,
		})
	}

	s.scheduleReminder(ctx, created)

	return toCaseResponse(created), nil
}

// scheduleReminder enqueues a visit reminder when the case has a schedule.
// The worker re-validates case state when the reminder fires, so scheduling
// eagerly here is safe even if the case is later cancelled or reassigned.
func (s *Service) scheduleReminder(ctx context.Context, cs repository.Case) {
	if s.reminders == nil || cs.ScheduledAt == nil {
		return
	}
	runAt := cs.ScheduledAt.Add(-reminderLead)
	if runAt.Before(time.Now()) {
		return
	}
	if err := s.reminders.ScheduleCaseReminder(ctx, cs.ID, runAt); err != nil {
		s.log.Warn("failed to schedule case reminder", "case_id", cs.ID.String(), "error", err.Error())
	}
}

// List returns the cases visible to the actor: headquarters sees all, with
// an optional status filter; handymen see only their own assignments.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, role access.Role, statusFilter *string) ([]transport.CaseResponse, error) {
	filter := repository.ListFilter{}

	if statusFilter != nil {
		status := domain.Status(*statusFilter)
		if !domain.IsKnownStatus(status) {
			return nil, apperr.Validation("unknown status filter")
		}
		filter.Status = &status
	}

	if !access.CanListAllCases(role) {
		if role != access.RoleHandyman {
			return nil, apperr.Forbidden("forbidden")
		}
		filter.HandymanID = &actorID
	}

	cases, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]transport.CaseResponse, 0, len(cases))
	for _, cs := range cases {
		out = append(out, toCaseResponse(cs))
	}
	return out, nil
}

// Get returns a single case with its message thread.
func (s *Service) Get(ctx context.Context, actorID uuid.UUID, role access.Role, id string) (transport.CaseDetailResponse, error) {
	cs, err := s.loadVisibleCase(ctx, actorID, role, id)
	if err != nil {
		return transport.CaseDetailResponse{}, err
	}

	messages, err := s.repo.ListMessages(ctx, cs.ID)
	if err != nil {
		return transport.CaseDetailResponse{}, err
	}

	detail := transport.CaseDetailResponse{
		CaseResponse: toCaseResponse(cs),
		Messages:     make([]transport.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		detail.Messages = append(detail.Messages, toMessageResponse(m))
	}
	return detail, nil
}

// Transition moves a case to a new status and/or assigns a handyman. It is
// the only write path for case state: access policy, the transition table
// and the guarded write all apply here, and a lost write race surfaces as a
// conflict rather than a silent overwrite. A request whose status is absent
// or equal to the current one is an assignment: headquarters may set or
// replace the handyman at any point without moving the lifecycle.
func (s *Service) Transition(ctx context.Context, actorID uuid.UUID, role access.Role, id string, req transport.TransitionRequest) (transport.CaseResponse, error) {
	caseID, err := uuid.Parse(id)
	if err != nil {
		return transport.CaseResponse{}, apperr.BadRequest("invalid case ID")
	}

	target := domain.Status(req.Status)
	if req.Status != "" && !domain.IsKnownStatus(target) {
		return transport.CaseResponse{}, apperr.Validation("unknown status")
	}

	newHandymanID, err := parseOptionalUUID(req.HandymanID)
	if err != nil {
		return transport.CaseResponse{}, apperr.Validation("invalid handyman ID")
	}
	if newHandymanID != nil && !access.CanAssignHandyman(role) {
		return transport.CaseResponse{}, apperr.Forbidden("only headquarters can assign a handyman")
	}
	if req.Status == "" && newHandymanID == nil {
		return transport.CaseResponse{}, apperr.Validation("a status or handyman is required")
	}

	current, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return transport.CaseResponse{}, err
	}

	facts := access.CaseFacts{HandymanID: current.HandymanID, ClientID: current.ClientID}
	if !access.CanViewCase(role, actorID, facts) {
		return transport.CaseResponse{}, apperr.NotFound("case not found")
	}

	if req.Status == "" || target == current.Status {
		return s.assign(ctx, current, newHandymanID)
	}

	if !access.CanRequestCaseStatus(role, actorID, facts, string(target)) {
		return transport.CaseResponse{}, apperr.Forbidden("transition not permitted for this role")
	}
	if !domain.CanTransition(current.Status, target) {
		return transport.CaseResponse{}, apperr.Validation("invalid status transition")
	}

	if target == domain.StatusAssigned && newHandymanID == nil && current.HandymanID == nil {
		return transport.CaseResponse{}, apperr.Validation("a handyman is required to assign a case")
	}

	var completedAt *time.Time
	if target == domain.StatusCompleted {
		now := time.Now()
		completedAt = &now
	}

	updated, err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:             caseID,
		ExpectedStatus: current.Status,
		NewStatus:      target,
		CompletedAt:    completedAt,
		HandymanID:     newHandymanID,
	})
	if err != nil {
		return transport.CaseResponse{}, err
	}

	s.publishTransitionEvents(ctx, current, updated, newHandymanID)

	return toCaseResponse(updated), nil
}

// assign sets or replaces the handyman without moving the lifecycle. The
// write is still guarded on the current status so a concurrent transition
// surfaces as a conflict, and completed_at is carried over untouched.
func (s *Service) assign(ctx context.Context, current repository.Case, newHandymanID *uuid.UUID) (transport.CaseResponse, error) {
	if newHandymanID == nil {
		return transport.CaseResponse{}, apperr.Validation("nothing to update")
	}

	updated, err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:             current.ID,
		ExpectedStatus: current.Status,
		NewStatus:      current.Status,
		CompletedAt:    current.CompletedAt,
		HandymanID:     newHandymanID,
	})
	if err != nil {
		return transport.CaseResponse{}, err
	}

	s.publishTransitionEvents(ctx, current, updated, newHandymanID)

	return toCaseResponse(updated), nil
}

// publishTransitionEvents emits the notification-facing events after a
// successful write. The two side effects are independent: a fresh
// assignment notifies the new handyman, and a status change notifies the
// attached handyman with the display label. A combined reassign+transition
// emits both.
func (s *Service) publishTransitionEvents(ctx context.Context, before, after repository.Case, newHandymanID *uuid.UUID) {
	reassigned := newHandymanID != nil &&
		(before.HandymanID == nil || *before.HandymanID != *newHandymanID)

	if reassigned {
		s.bus.Publish(ctx, events.CaseAssigned{
			BaseEvent:  events.NewBaseEvent(),
			CaseID:     after.ID,
			CaseTitle:  after.Title,
			HandymanID: *newHandymanID,
		})
	}

	if after.Status != before.Status && after.HandymanID != nil {
		s.bus.Publish(ctx, events.CaseStatusChanged{
			BaseEvent:   events.NewBaseEvent(),
			CaseID:      after.ID,
			CaseTitle:   after.Title,
			HandymanID:  *after.HandymanID,
			NewStatus:   string(after.Status),
			StatusLabel: domain.StatusLabel(after.Status),
		})
	}
}

// ListMessages returns a case's thread, oldest first.
func (s *Service) ListMessages(ctx context.Context, actorID uuid.UUID, role access.Role, id string) ([]transport.MessageResponse, error) {
	cs, err := s.loadVisibleCase(ctx, actorID, role, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, cs.ID)
	if err != nil {
		return nil, err
	}

	out := make([]transport.MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	return out, nil
}

// CreateMessage appends a message to the thread and notifies the case
// handyman unless they wrote it themselves.
func (s *Service) CreateMessage(ctx context.Context, actorID uuid.UUID, role access.Role, id string, req transport.CreateMessageRequest) (transport.MessageResponse, error) {
	cs, err := s.loadVisibleCase(ctx, actorID, role, id)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	facts := access.CaseFacts{HandymanID: cs.HandymanID, ClientID: cs.ClientID}
	if !access.CanPostMessage(role, actorID, facts) {
		return transport.MessageResponse{}, apperr.Forbidden("cannot post messages on this case")
	}

	msg, err := s.repo.CreateMessage(ctx, cs.ID, actorID, req.Content)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	s.bus.Publish(ctx, events.NewMessage{
		BaseEvent:  events.NewBaseEvent(),
		CaseID:     cs.ID,
		CaseTitle:  cs.Title,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
	})

	return toMessageResponse(msg), nil
}

// Dashboard returns the headquarters overview.
func (s *Service) Dashboard(ctx context.Context, role access.Role) (transport.DashboardResponse, error) {
	if !access.CanListAllCases(role) {
		return transport.DashboardResponse{}, apperr.Forbidden("forbidden")
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return transport.DashboardResponse{}, err
	}
	recent, err := s.repo.RecentCases(ctx, recentCasesLimit)
	if err != nil {
		return transport.DashboardResponse{}, err
	}

	resp := transport.DashboardResponse{
		PendingCount:    stats.Pending,
		AssignedCount:   stats.Assigned,
		InProgressCount: stats.InProgress,
		CompletedToday:  stats.CompletedToday,
		TotalActive:     stats.TotalActive,
		RecentCases:     make([]transport.CaseResponse, 0, len(recent)),
	}
	for _, cs := range recent {
		resp.RecentCases = append(resp.RecentCases, toCaseResponse(cs))
	}
	return resp, nil
}

// loadVisibleCase fetches a case and enforces view access. Cases the actor
// must not see surface as not found rather than forbidden, so their
// existence is not leaked.
func (s *Service) loadVisibleCase(ctx context.Context, actorID uuid.UUID, role access.Role, id string) (repository.Case, error) {
	caseID, err := uuid.Parse(id)
	if err != nil {
		return repository.Case{}, apperr.BadRequest("invalid case ID")
	}

	cs, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return repository.Case{}, err
	}

	facts := access.CaseFacts{HandymanID: cs.HandymanID, ClientID: cs.ClientID}
	if !access.CanViewCase(role, actorID, facts) {
		return repository.Case{}, apperr.NotFound("case not found")
	}
	return cs, nil
}

func toCaseResponse(cs repository.Case) transport.CaseResponse {
	resp := transport.CaseResponse{
		ID:          cs.ID.String(),
		Title:       cs.Title,
		Description: cs.Description,
		Address:     cs.Address,
		ScheduledAt: cs.ScheduledAt,
		Status:      string(cs.Status),
		CompletedAt: cs.CompletedAt,
		CreatedAt:   cs.CreatedAt,
		UpdatedAt:   cs.UpdatedAt,
	}
	if cs.HandymanID != nil {
		resp.Handyman = &transport.UserSummary{ID: cs.HandymanID.String(), Name: deref(cs.HandymanName)}
	}
	if cs.ClientID != nil {
		resp.Client = &transport.UserSummary{ID: cs.ClientID.String(), Name: deref(cs.ClientName)}
	}
	return resp
}

func toMessageResponse(m repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:        m.ID.String(),
		CaseID:    m.CaseID.String(),
		Sender:    transport.UserSummary{ID: m.SenderID.String(), Name: m.SenderName},
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
