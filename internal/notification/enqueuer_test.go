package notification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	authrepo "handyman_portal_backend/internal/auth/repository"
	casesrepo "handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/events"
	"handyman_portal_backend/internal/notification/outbox"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

type fakeOutbox struct {
	inserted []outbox.InsertParams
}

func (f *fakeOutbox) Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	f.inserted = append(f.inserted, p)
	return uuid.New(), nil
}

type fakeUsers struct {
	users map[uuid.UUID]authrepo.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (authrepo.User, error) {
	u, ok := f.users[id]
	if !ok {
		return authrepo.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

type fakeCases struct {
	cases map[uuid.UUID]casesrepo.Case
}

func (f *fakeCases) GetByID(ctx context.Context, id uuid.UUID) (casesrepo.Case, error) {
	cs, ok := f.cases[id]
	if !ok {
		return casesrepo.Case{}, apperr.NotFound("case not found")
	}
	return cs, nil
}

func strPtr(s string) *string { return &s }

func handymanUser(id uuid.UUID, lineUserID *string) authrepo.User {
	return authrepo.User{ID: id, Name: "職人", Role: access.RoleHandyman, LineUserID: lineUserID}
}

func payloadMessage(t *testing.T, p outbox.InsertParams) outbox.Message {
	t.Helper()
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var msg outbox.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return msg
}

func TestCaseAssignedEnqueuesRenderedMessage(t *testing.T) {
	ob := &fakeOutbox{}
	handymanID := uuid.New()
	users := &fakeUsers{users: map[uuid.UUID]authrepo.User{
		handymanID: handymanUser(handymanID, strPtr("U123")),
	}}
	enq := NewEnqueuer(ob, users, &fakeCases{}, logger.New("test"))

	err := enq.handleCaseAssigned(context.Background(), events.CaseAssigned{
		BaseEvent:  events.NewBaseEvent(),
		CaseID:     uuid.New(),
		CaseTitle:  "エアコン修理",
		HandymanID: handymanID,
	})
	if err != nil {
		t.Fatalf("handleCaseAssigned() error = %v", err)
	}

	if len(ob.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(ob.inserted))
	}
	rec := ob.inserted[0]
	if rec.Template != TemplateCaseAssigned {
		t.Errorf("template = %q", rec.Template)
	}
	msg := payloadMessage(t, rec)
	if msg.To != "U123" {
		t.Errorf("to = %q, want U123", msg.To)
	}
	if !strings.Contains(msg.Text, "エアコン修理") || !strings.HasPrefix(msg.Text, "【ゲンバディ】") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestCaseStatusChangedUsesDisplayLabel(t *testing.T) {
	ob := &fakeOutbox{}
	handymanID := uuid.New()
	users := &fakeUsers{users: map[uuid.UUID]authrepo.User{
		handymanID: handymanUser(handymanID, strPtr("U123")),
	}}
	enq := NewEnqueuer(ob, users, &fakeCases{}, logger.New("test"))

	if err := enq.handleCaseStatusChanged(context.Background(), events.CaseStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		CaseID:      uuid.New(),
		CaseTitle:   "水漏れ",
		HandymanID:  handymanID,
		NewStatus:   "COMPLETED",
		StatusLabel: "完了しました",
	}); err != nil {
		t.Fatalf("handleCaseStatusChanged() error = %v", err)
	}

	if len(ob.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(ob.inserted))
	}
	if msg := payloadMessage(t, ob.inserted[0]); !strings.Contains(msg.Text, "完了しました") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestRecipientWithoutLineAccountIsSkipped(t *testing.T) {
	ob := &fakeOutbox{}
	handymanID := uuid.New()
	users := &fakeUsers{users: map[uuid.UUID]authrepo.User{
		handymanID: handymanUser(handymanID, nil),
	}}
	enq := NewEnqueuer(ob, users, &fakeCases{}, logger.New("test"))

	if err := enq.handleCaseAssigned(context.Background(), events.CaseAssigned{
		BaseEvent:  events.NewBaseEvent(),
		CaseID:     uuid.New(),
		CaseTitle:  "t",
		HandymanID: handymanID,
	}); err != nil {
		t.Fatalf("handleCaseAssigned() error = %v", err)
	}
	if len(ob.inserted) != 0 {
		t.Errorf("inserted %d records for recipient without LINE account, want 0", len(ob.inserted))
	}
}

func TestNewMessageSkipsSenderOwnMessage(t *testing.T) {
	handymanID := uuid.New()
	caseID := uuid.New()
	lineID := strPtr("U123")
	users := &fakeUsers{users: map[uuid.UUID]authrepo.User{handymanID: handymanUser(handymanID, lineID)}}
	cases := &fakeCases{cases: map[uuid.UUID]casesrepo.Case{
		caseID: {ID: caseID, Title: "修理", HandymanID: &handymanID},
	}}

	tests := []struct {
		name       string
		senderID   uuid.UUID
		wantQueued int
	}{
		{"headquarters message notifies handyman", uuid.New(), 1},
		{"handyman's own message is not echoed back", handymanID, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ob := &fakeOutbox{}
			enq := NewEnqueuer(ob, users, cases, logger.New("test"))

			if err := enq.handleNewMessage(context.Background(), events.NewMessage{
				BaseEvent:  events.NewBaseEvent(),
				CaseID:     caseID,
				CaseTitle:  "修理",
				SenderID:   tc.senderID,
				SenderName: "本部",
			}); err != nil {
				t.Fatalf("handleNewMessage() error = %v", err)
			}
			if len(ob.inserted) != tc.wantQueued {
				t.Errorf("inserted %d records, want %d", len(ob.inserted), tc.wantQueued)
			}
		})
	}
}

func TestUnassignedCaseEventsAreDropped(t *testing.T) {
	caseID := uuid.New()
	cases := &fakeCases{cases: map[uuid.UUID]casesrepo.Case{caseID: {ID: caseID, Title: "t"}}}
	ob := &fakeOutbox{}
	enq := NewEnqueuer(ob, &fakeUsers{}, cases, logger.New("test"))

	if err := enq.handleInvoicePaid(context.Background(), events.InvoicePaid{
		BaseEvent: events.NewBaseEvent(),
		InvoiceID: uuid.New(),
		CaseID:    caseID,
		Amount:    1000,
	}); err != nil {
		t.Fatalf("handleInvoicePaid() error = %v", err)
	}
	if len(ob.inserted) != 0 {
		t.Errorf("inserted %d records for unassigned case, want 0", len(ob.inserted))
	}
}
