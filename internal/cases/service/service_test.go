package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/internal/cases/domain"
	"handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/cases/transport"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

type fakeRepo struct {
	cases    map[uuid.UUID]repository.Case
	messages map[uuid.UUID][]repository.Message

	// raceStatus, when set, overwrites the stored status between the
	// service's read and its guarded write, simulating a lost race.
	raceStatus *domain.Status
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		cases:    map[uuid.UUID]repository.Case{},
		messages: map[uuid.UUID][]repository.Message{},
	}
}

func (f *fakeRepo) put(cs repository.Case) repository.Case {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	f.cases[cs.ID] = cs
	return cs
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Case, error) {
	cs, ok := f.cases[id]
	if !ok {
		return repository.Case{}, apperr.NotFound("case not found")
	}
	if f.raceStatus != nil {
		raced := cs
		raced.Status = *f.raceStatus
		f.cases[id] = raced
		f.raceStatus = nil
	}
	return cs, nil
}

func (f *fakeRepo) List(ctx context.Context, filter repository.ListFilter) ([]repository.Case, error) {
	out := []repository.Case{}
	for _, cs := range f.cases {
		if filter.Status != nil && cs.Status != *filter.Status {
			continue
		}
		if filter.HandymanID != nil && (cs.HandymanID == nil || *cs.HandymanID != *filter.HandymanID) {
			continue
		}
		if filter.ClientID != nil && (cs.ClientID == nil || *cs.ClientID != *filter.ClientID) {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

func (f *fakeRepo) Create(ctx context.Context, params repository.CreateParams) (repository.Case, error) {
	now := time.Now()
	return f.put(repository.Case{
		Title:       params.Title,
		Description: params.Description,
		Address:     params.Address,
		ScheduledAt: params.ScheduledAt,
		Status:      params.Status,
		HandymanID:  params.HandymanID,
		ClientID:    params.ClientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}), nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) (repository.Case, error) {
	cs, ok := f.cases[params.ID]
	if !ok || cs.Status != params.ExpectedStatus {
		return repository.Case{}, apperr.Conflict("case was modified concurrently")
	}
	cs.Status = params.NewStatus
	cs.CompletedAt = params.CompletedAt
	if params.HandymanID != nil {
		cs.HandymanID = params.HandymanID
	}
	cs.UpdatedAt = time.Now()
	f.cases[params.ID] = cs
	return cs, nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, caseID uuid.UUID) ([]repository.Message, error) {
	return f.messages[caseID], nil
}

func (f *fakeRepo) CreateMessage(ctx context.Context, caseID, senderID uuid.UUID, content string) (repository.Message, error) {
	m := repository.Message{
		ID:         uuid.New(),
		CaseID:     caseID,
		SenderID:   senderID,
		SenderName: "sender",
		Content:    content,
		CreatedAt:  time.Now(),
	}
	f.messages[caseID] = append(f.messages[caseID], m)
	return m, nil
}

func (f *fakeRepo) Stats(ctx context.Context) (repository.DashboardStats, error) {
	return repository.DashboardStats{}, nil
}

func (f *fakeRepo) RecentCases(ctx context.Context, limit int) ([]repository.Case, error) {
	return nil, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

type fakeCaseConfig struct {
	assignOnCreate bool
}

func (f fakeCaseConfig) GetAssignOnCreate() bool { return f.assignOnCreate }

func newTestService(repo *fakeRepo, bus *recordingBus, assignOnCreate bool) *Service {
	return New(repo, bus, nil, fakeCaseConfig{assignOnCreate: assignOnCreate}, logger.New("test"))
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func strPtr(s string) *string { return &s }

func TestTransitionHappyPathEmitsStatusChanged(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	handymanID := uuid.New()
	cs := repo.put(repository.Case{
		Title:      "水漏れ修理",
		Status:     domain.StatusAssigned,
		HandymanID: uuidPtr(handymanID),
	})
	svc := newTestService(repo, bus, false)

	updated, err := svc.Transition(context.Background(), handymanID, access.RoleHandyman, cs.ID.String(),
		transport.TransitionRequest{Status: "IN_PROGRESS"})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if updated.Status != "IN_PROGRESS" {
		t.Errorf("status = %q, want IN_PROGRESS", updated.Status)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	ev, ok := bus.published[0].(events.CaseStatusChanged)
	if !ok {
		t.Fatalf("event = %T, want CaseStatusChanged", bus.published[0])
	}
	if ev.StatusLabel != "対応中に変更されました" {
		t.Errorf("status label = %q", ev.StatusLabel)
	}
}

func TestTransitionLostRaceReturnsConflict(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	cs := repo.put(repository.Case{Title: "raced", Status: domain.StatusAssigned, HandymanID: uuidPtr(uuid.New())})

	// Another request cancels the case between this request's read and write.
	cancelled := domain.StatusCancelled
	repo.raceStatus = &cancelled

	svc := newTestService(repo, bus, false)
	_, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{Status: "IN_PROGRESS"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("error kind = %v, want conflict", apperr.GetKind(err))
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events on failed transition, want 0", len(bus.published))
	}
}

func TestTransitionRoleRestrictions(t *testing.T) {
	handymanID := uuid.New()
	otherHandyman := uuid.New()

	tests := []struct {
		name     string
		actor    uuid.UUID
		role     access.Role
		from     domain.Status
		target   string
		wantKind apperr.Kind
	}{
		{
			name:     "handyman cannot cancel own case",
			actor:    handymanID,
			role:     access.RoleHandyman,
			from:     domain.StatusAssigned,
			target:   "CANCELLED",
			wantKind: apperr.KindForbidden,
		},
		{
			name:     "handyman cannot touch another handyman's case",
			actor:    otherHandyman,
			role:     access.RoleHandyman,
			from:     domain.StatusAssigned,
			target:   "IN_PROGRESS",
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "end user cannot transition",
			actor:    uuid.New(),
			role:     access.RoleEndUser,
			from:     domain.StatusAssigned,
			target:   "CANCELLED",
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "skipping a stage is rejected",
			actor:    uuid.New(),
			role:     access.RoleHeadquarters,
			from:     domain.StatusPending,
			target:   "COMPLETED",
			wantKind: apperr.KindValidation,
		},
		{
			name:     "terminal case cannot move",
			actor:    uuid.New(),
			role:     access.RoleHeadquarters,
			from:     domain.StatusCompleted,
			target:   "IN_PROGRESS",
			wantKind: apperr.KindValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			bus := &recordingBus{}
			cs := repo.put(repository.Case{Title: "t", Status: tc.from, HandymanID: uuidPtr(handymanID)})
			svc := newTestService(repo, bus, false)

			_, err := svc.Transition(context.Background(), tc.actor, tc.role, cs.ID.String(),
				transport.TransitionRequest{Status: tc.target})
			if apperr.GetKind(err) != tc.wantKind {
				t.Errorf("error kind = %v, want %v", apperr.GetKind(err), tc.wantKind)
			}
		})
	}
}

func TestTransitionCompletedStampsCompletedAt(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	handymanID := uuid.New()
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusInProgress, HandymanID: uuidPtr(handymanID)})
	svc := newTestService(repo, bus, false)

	updated, err := svc.Transition(context.Background(), handymanID, access.RoleHandyman, cs.ID.String(),
		transport.TransitionRequest{Status: "COMPLETED"})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("completedAt not stamped on COMPLETED")
	}

	stored := repo.cases[cs.ID]
	if stored.CompletedAt == nil {
		t.Error("stored completedAt is nil")
	}
}

func TestTransitionReassignmentEmitsCaseAssigned(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	newHandyman := uuid.New()
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusPending})
	svc := newTestService(repo, bus, false)

	_, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{Status: "ASSIGNED", HandymanID: strPtr(newHandyman.String())})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	// Assignment and status change are independent side effects; moving to
	// ASSIGNED with a new handyman triggers both.
	if len(bus.published) != 2 {
		t.Fatalf("published %d events, want 2", len(bus.published))
	}
	assigned, ok := bus.published[0].(events.CaseAssigned)
	if !ok {
		t.Fatalf("event[0] = %T, want CaseAssigned", bus.published[0])
	}
	if assigned.HandymanID != newHandyman {
		t.Errorf("handyman = %v, want %v", assigned.HandymanID, newHandyman)
	}
	changed, ok := bus.published[1].(events.CaseStatusChanged)
	if !ok {
		t.Fatalf("event[1] = %T, want CaseStatusChanged", bus.published[1])
	}
	if changed.NewStatus != "ASSIGNED" {
		t.Errorf("new status = %q, want ASSIGNED", changed.NewStatus)
	}
}

func TestTransitionAssignmentKeepsStatus(t *testing.T) {
	handyman := uuid.New()

	tests := []struct {
		name   string
		status string
	}{
		{"same status in request", "PENDING"},
		{"status omitted", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			bus := &recordingBus{}
			cs := repo.put(repository.Case{Title: "水漏れ修理", Status: domain.StatusPending})
			svc := newTestService(repo, bus, false)

			updated, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
				transport.TransitionRequest{Status: tc.status, HandymanID: strPtr(handyman.String())})
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if updated.Status != "PENDING" {
				t.Errorf("status = %q, want PENDING unchanged", updated.Status)
			}
			if updated.Handyman == nil || updated.Handyman.ID != handyman.String() {
				t.Errorf("handyman not set: %+v", updated.Handyman)
			}

			if len(bus.published) != 1 {
				t.Fatalf("published %d events, want 1", len(bus.published))
			}
			ev, ok := bus.published[0].(events.CaseAssigned)
			if !ok {
				t.Fatalf("event = %T, want CaseAssigned", bus.published[0])
			}
			if ev.HandymanID != handyman {
				t.Errorf("handyman = %v, want %v", ev.HandymanID, handyman)
			}
		})
	}
}

func TestTransitionAssignmentReplacesHandyman(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	oldHandyman := uuid.New()
	newHandyman := uuid.New()
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusAssigned, HandymanID: uuidPtr(oldHandyman)})
	svc := newTestService(repo, bus, false)

	updated, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{HandymanID: strPtr(newHandyman.String())})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if updated.Status != "ASSIGNED" {
		t.Errorf("status = %q, want ASSIGNED unchanged", updated.Status)
	}
	if updated.Handyman == nil || updated.Handyman.ID != newHandyman.String() {
		t.Errorf("handyman not replaced: %+v", updated.Handyman)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if _, ok := bus.published[0].(events.CaseAssigned); !ok {
		t.Fatalf("event = %T, want CaseAssigned", bus.published[0])
	}
}

func TestTransitionEmptyRequestRejected(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusPending})
	svc := newTestService(repo, bus, false)

	_, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestTransitionWithReassignmentEmitsBothEvents(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	oldHandyman := uuid.New()
	newHandyman := uuid.New()
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusAssigned, HandymanID: uuidPtr(oldHandyman)})
	svc := newTestService(repo, bus, false)

	_, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{Status: "IN_PROGRESS", HandymanID: strPtr(newHandyman.String())})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if len(bus.published) != 2 {
		t.Fatalf("published %d events, want 2", len(bus.published))
	}
	assigned, ok := bus.published[0].(events.CaseAssigned)
	if !ok {
		t.Fatalf("event[0] = %T, want CaseAssigned", bus.published[0])
	}
	if assigned.HandymanID != newHandyman {
		t.Errorf("assigned handyman = %v, want %v", assigned.HandymanID, newHandyman)
	}
	changed, ok := bus.published[1].(events.CaseStatusChanged)
	if !ok {
		t.Fatalf("event[1] = %T, want CaseStatusChanged", bus.published[1])
	}
	if changed.HandymanID != newHandyman {
		t.Errorf("status change went to %v, want the new handyman %v", changed.HandymanID, newHandyman)
	}
	if changed.StatusLabel != "対応中に変更されました" {
		t.Errorf("status label = %q", changed.StatusLabel)
	}
}

func TestTransitionAssignRequiresHandyman(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusPending})
	svc := newTestService(repo, bus, false)

	_, err := svc.Transition(context.Background(), uuid.New(), access.RoleHeadquarters, cs.ID.String(),
		transport.TransitionRequest{Status: "ASSIGNED"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestCreateAssignOnCreate(t *testing.T) {
	handymanID := uuid.New().String()

	tests := []struct {
		name           string
		assignOnCreate bool
		handymanID     *string
		wantStatus     string
		wantEvents     int
	}{
		{"flag off stays pending", false, &handymanID, "PENDING", 0},
		{"flag on pre-assigns", true, &handymanID, "ASSIGNED", 1},
		{"no handyman stays pending regardless", true, nil, "PENDING", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			bus := &recordingBus{}
			svc := newTestService(repo, bus, tc.assignOnCreate)

			created, err := svc.Create(context.Background(), uuid.New(), access.RoleHeadquarters,
				transport.CreateCaseRequest{Title: "蛇口交換", Description: "台所", HandymanID: tc.handymanID})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if created.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", created.Status, tc.wantStatus)
			}
			if len(bus.published) != tc.wantEvents {
				t.Errorf("published %d events, want %d", len(bus.published), tc.wantEvents)
			}
		})
	}
}

type fakeReminders struct {
	scheduled []time.Time
}

func (f *fakeReminders) ScheduleCaseReminder(ctx context.Context, caseID uuid.UUID, runAt time.Time) error {
	f.scheduled = append(f.scheduled, runAt)
	return nil
}

func TestCreateSchedulesVisitReminder(t *testing.T) {
	repo := newFakeRepo()
	reminders := &fakeReminders{}
	svc := New(repo, &recordingBus{}, reminders, fakeCaseConfig{}, logger.New("test"))

	scheduledAt := time.Now().Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), uuid.New(), access.RoleHeadquarters,
		transport.CreateCaseRequest{Title: "t", Description: "d", ScheduledAt: &scheduledAt})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(reminders.scheduled) != 1 {
		t.Fatalf("scheduled %d reminders, want 1", len(reminders.scheduled))
	}
	if want := scheduledAt.Add(-time.Hour); !reminders.scheduled[0].Equal(want) {
		t.Errorf("reminder at %v, want %v", reminders.scheduled[0], want)
	}

	// No schedule, no reminder.
	_, err = svc.Create(context.Background(), uuid.New(), access.RoleHeadquarters,
		transport.CreateCaseRequest{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(reminders.scheduled) != 1 {
		t.Errorf("scheduled %d reminders, want still 1", len(reminders.scheduled))
	}
}

func TestCreateForbiddenForNonHeadquarters(t *testing.T) {
	svc := newTestService(newFakeRepo(), &recordingBus{}, false)

	_, err := svc.Create(context.Background(), uuid.New(), access.RoleHandyman,
		transport.CreateCaseRequest{Title: "t", Description: "d"})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("error kind = %v, want forbidden", apperr.GetKind(err))
	}
}

func TestListScopesHandymanToOwnCases(t *testing.T) {
	repo := newFakeRepo()
	handymanID := uuid.New()
	repo.put(repository.Case{Title: "mine", Status: domain.StatusAssigned, HandymanID: uuidPtr(handymanID)})
	repo.put(repository.Case{Title: "other", Status: domain.StatusAssigned, HandymanID: uuidPtr(uuid.New())})
	repo.put(repository.Case{Title: "unassigned", Status: domain.StatusPending})
	svc := newTestService(repo, &recordingBus{}, false)

	cases, err := svc.List(context.Background(), handymanID, access.RoleHandyman, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(cases) != 1 || cases[0].Title != "mine" {
		t.Errorf("handyman sees %d cases, want only their own", len(cases))
	}
}

func TestCreateMessageEmitsNewMessage(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	handymanID := uuid.New()
	cs := repo.put(repository.Case{Title: "t", Status: domain.StatusAssigned, HandymanID: uuidPtr(handymanID)})
	svc := newTestService(repo, bus, false)

	hqID := uuid.New()
	_, err := svc.CreateMessage(context.Background(), hqID, access.RoleHeadquarters, cs.ID.String(),
		transport.CreateMessageRequest{Content: "明日お伺いします"})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	ev, ok := bus.published[0].(events.NewMessage)
	if !ok {
		t.Fatalf("event = %T, want NewMessage", bus.published[0])
	}
	if ev.SenderID != hqID {
		t.Errorf("sender = %v, want %v", ev.SenderID, hqID)
	}
}
