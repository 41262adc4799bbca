package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/notification/inapp"
	"estate_crm_backend/internal/notification/outbox"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeInApp struct {
	sent []inapp.SendParams
}

func (f *fakeInApp) Send(_ context.Context, p inapp.SendParams) error {
	f.sent = append(f.sent, p)
	return nil
}

type fakeOutbox struct {
	records map[uuid.UUID]*outbox.Record
	byKey   map[string]uuid.UUID
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{
		records: make(map[uuid.UUID]*outbox.Record),
		byKey:   make(map[string]uuid.UUID),
	}
}

func (f *fakeOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, bool, error) {
	if _, exists := f.byKey[p.DedupeKey]; exists {
		return uuid.Nil, false, nil
	}
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, false, err
	}
	id := uuid.New()
	f.records[id] = &outbox.Record{
		ID:          id,
		DedupeKey:   p.DedupeKey,
		LeadID:      p.LeadID,
		RecipientID: p.RecipientID,
		Kind:        p.Kind,
		Payload:     payload,
		Status:      outbox.StatusPending,
	}
	f.byKey[p.DedupeKey] = id
	return id, true, nil
}

func (f *fakeOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return outbox.Record{}, outbox.ErrNotFound
	}
	return *rec, nil
}

func (f *fakeOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	f.records[id].Status = outbox.StatusProcessing
	f.records[id].Attempts++
	return nil
}

func (f *fakeOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	f.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	f.records[id].Status = outbox.StatusFailed
	return nil
}

func (f *fakeOutbox) MarkPending(_ context.Context, id uuid.UUID, _ *string) error {
	f.records[id].Status = outbox.StatusPending
	return nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, toEmail, _, _ string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, toEmail)
	return nil
}

type fakeRecipients struct {
	recipients map[uuid.UUID]Recipient
}

func (f *fakeRecipients) GetRecipient(_ context.Context, id uuid.UUID) (Recipient, error) {
	r, ok := f.recipients[id]
	if !ok {
		return Recipient{}, errors.New("recipient not found")
	}
	return r, nil
}

type fixture struct {
	module     *Module
	inapp      *fakeInApp
	outbox     *fakeOutbox
	sender     *fakeSender
	recipients *fakeRecipients
}

func newFixture() *fixture {
	inappFake := &fakeInApp{}
	outboxFake := newFakeOutbox()
	sender := &fakeSender{}
	recipients := &fakeRecipients{recipients: make(map[uuid.UUID]Recipient)}
	m := newModuleForTest(inappFake, outboxFake, sender, recipients, logger.New("test"))
	return &fixture{module: m, inapp: inappFake, outbox: outboxFake, sender: sender, recipients: recipients}
}

func TestHandleLeadAssignedFirstAssignment(t *testing.T) {
	f := newFixture()
	actor := uuid.New()
	agent := uuid.New()

	err := f.module.handleLeadAssigned(context.Background(), events.LeadAssigned{
		LeadID:       uuid.New(),
		LeadName:     "Amit Verma",
		ToAgentID:    agent,
		AssignedByID: &actor,
	})
	if err != nil {
		t.Fatalf("handleLeadAssigned() error = %v", err)
	}

	if len(f.inapp.sent) != 2 {
		t.Fatalf("in-app notifications = %d, want 2 (agent + actor)", len(f.inapp.sent))
	}
	if f.inapp.sent[0].UserID != agent || f.inapp.sent[0].Type != KindLeadAssigned {
		t.Errorf("first notification = %+v, want lead_assigned for agent", f.inapp.sent[0])
	}
	if f.inapp.sent[1].UserID != actor || f.inapp.sent[1].Type != KindAssignmentConfirmed {
		t.Errorf("second notification = %+v, want assignment_confirmed for actor", f.inapp.sent[1])
	}
}

func TestHandleLeadAssignedReassignment(t *testing.T) {
	f := newFixture()
	actor := uuid.New()
	fromAgent := uuid.New()
	toAgent := uuid.New()

	err := f.module.handleLeadAssigned(context.Background(), events.LeadAssigned{
		LeadID:       uuid.New(),
		LeadName:     "Amit Verma",
		FromAgentID:  &fromAgent,
		ToAgentID:    toAgent,
		AssignedByID: &actor,
	})
	if err != nil {
		t.Fatalf("handleLeadAssigned() error = %v", err)
	}

	if len(f.inapp.sent) != 3 {
		t.Fatalf("in-app notifications = %d, want 3", len(f.inapp.sent))
	}
	types := map[uuid.UUID]string{}
	for _, p := range f.inapp.sent {
		types[p.UserID] = p.Type
	}
	if types[toAgent] != KindLeadAssigned {
		t.Errorf("new agent notification type = %q, want %q", types[toAgent], KindLeadAssigned)
	}
	if types[fromAgent] != KindLeadReassignedAway {
		t.Errorf("old agent notification type = %q, want %q", types[fromAgent], KindLeadReassignedAway)
	}
	if types[actor] != KindAssignmentConfirmed {
		t.Errorf("actor notification type = %q, want %q", types[actor], KindAssignmentConfirmed)
	}
}

func TestHandleLeadAssignedActorIsNewAgent(t *testing.T) {
	f := newFixture()
	agent := uuid.New()

	err := f.module.handleLeadAssigned(context.Background(), events.LeadAssigned{
		LeadID:       uuid.New(),
		LeadName:     "Amit Verma",
		ToAgentID:    agent,
		AssignedByID: &agent,
	})
	if err != nil {
		t.Fatalf("handleLeadAssigned() error = %v", err)
	}

	if len(f.inapp.sent) != 1 {
		t.Fatalf("in-app notifications = %d, want 1 (no self-confirmation)", len(f.inapp.sent))
	}
}

func TestHandleLeadConvertedIsIdempotent(t *testing.T) {
	f := newFixture()
	agent := uuid.New()
	event := events.LeadConverted{
		LeadID:          uuid.New(),
		LeadName:        "Amit Verma",
		AssignedAgentID: &agent,
	}

	if err := f.module.handleLeadConverted(context.Background(), event); err != nil {
		t.Fatalf("handleLeadConverted() error = %v", err)
	}
	if err := f.module.handleLeadConverted(context.Background(), event); err != nil {
		t.Fatalf("replayed handleLeadConverted() error = %v", err)
	}

	if len(f.outbox.records) != 1 {
		t.Errorf("outbox records = %d, want 1 after replay", len(f.outbox.records))
	}
}

func TestHandleLeadConvertedUnassignedIsNoop(t *testing.T) {
	f := newFixture()

	err := f.module.handleLeadConverted(context.Background(), events.LeadConverted{
		LeadID:   uuid.New(),
		LeadName: "Amit Verma",
	})
	if err != nil {
		t.Fatalf("handleLeadConverted() error = %v", err)
	}
	if len(f.inapp.sent) != 0 || len(f.outbox.records) != 0 {
		t.Errorf("expected no notifications for unassigned lead, got inapp=%d outbox=%d", len(f.inapp.sent), len(f.outbox.records))
	}
}

func TestDeliverOutboxRecord(t *testing.T) {
	f := newFixture()
	agent := uuid.New()
	f.recipients.recipients[agent] = Recipient{Name: "Priya", Email: "priya@example.com"}

	leadID := uuid.New()
	id, inserted, err := f.outbox.Insert(context.Background(), outbox.InsertParams{
		DedupeKey:   "test:converted:" + agent.String(),
		LeadID:      &leadID,
		RecipientID: agent,
		Kind:        KindStatusUpdate,
		Payload:     map[string]interface{}{"leadName": "Amit Verma"},
	})
	if err != nil || !inserted {
		t.Fatalf("Insert() = %v, %v", inserted, err)
	}

	if err := f.module.deliverOutboxRecord(context.Background(), id); err != nil {
		t.Fatalf("deliverOutboxRecord() error = %v", err)
	}

	if len(f.sender.sent) != 1 || f.sender.sent[0] != "priya@example.com" {
		t.Errorf("sent emails = %v, want one to priya@example.com", f.sender.sent)
	}
	if f.outbox.records[id].Status != outbox.StatusSucceeded {
		t.Errorf("record status = %q, want succeeded", f.outbox.records[id].Status)
	}
}

func TestDeliverOutboxRecordRetriesOnFailure(t *testing.T) {
	f := newFixture()
	f.sender.fail = true
	agent := uuid.New()
	f.recipients.recipients[agent] = Recipient{Name: "Priya", Email: "priya@example.com"}

	id, _, err := f.outbox.Insert(context.Background(), outbox.InsertParams{
		DedupeKey:   "test:assigned:" + agent.String(),
		RecipientID: agent,
		Kind:        KindLeadAssigned,
		Payload:     map[string]interface{}{"leadName": "Amit Verma"},
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := f.module.deliverOutboxRecord(context.Background(), id); err == nil {
		t.Fatal("deliverOutboxRecord() error = nil, want send failure")
	}
	if f.outbox.records[id].Status != outbox.StatusPending {
		t.Errorf("record status = %q, want pending for retry", f.outbox.records[id].Status)
	}

	// Exhaust the attempt budget.
	for i := 0; i < maxDeliveryAttempts; i++ {
		_ = f.module.deliverOutboxRecord(context.Background(), id)
	}
	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Errorf("record status after budget = %q, want failed", f.outbox.records[id].Status)
	}
}
