package lifecycle

import (
	"context"
	"testing"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads       map[uuid.UUID]repository.Lead
	assignments map[uuid.UUID][]repository.Assignment
	outbox      []repository.OutboxEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:       make(map[uuid.UUID]repository.Lead),
		assignments: make(map[uuid.UUID][]repository.Assignment),
	}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:              uuid.New(),
		FullName:        params.FullName,
		Phone:           params.Phone,
		Email:           params.Email,
		Classification:  params.Classification,
		VoidReason:      params.VoidReason,
		VoidReasonNote:  params.VoidReasonNote,
		Source:          params.Source,
		BudgetMin:       params.BudgetMin,
		BudgetMax:       params.BudgetMax,
		Status:          params.Status,
		AssignedAgentID: params.AssignedAgentID,
		PriorityScore:   params.PriorityScore,
		InvestmentScore: params.InvestmentScore,
		Profile:         params.Profile,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) CreateAssigned(ctx context.Context, params repository.CreateLeadParams, assignedBy *uuid.UUID, reason string, outbox func(repository.Lead, uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error) {
	lead, err := f.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, repository.Assignment{}, err
	}
	assignment := repository.Assignment{
		ID:         uuid.New(),
		LeadID:     lead.ID,
		ToAgent:    *params.AssignedAgentID,
		AssignedBy: assignedBy,
		Reason:     reason,
	}
	f.assignments[lead.ID] = append(f.assignments[lead.ID], assignment)
	if outbox != nil {
		f.outbox = append(f.outbox, outbox(lead, assignment.ID)...)
	}
	return lead, assignment, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) GetByPhone(_ context.Context, phone string) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.Phone == phone {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) GetByPhoneForAgent(_ context.Context, phone string, agentID *uuid.UUID) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.Phone != phone {
			continue
		}
		switch {
		case lead.AssignedAgentID == nil && agentID == nil:
			return lead, nil
		case lead.AssignedAgentID != nil && agentID != nil && *lead.AssignedAgentID == *agentID:
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.FullName != nil {
		lead.FullName = *params.FullName
	}
	if params.Phone != nil {
		lead.Phone = *params.Phone
	}
	if params.Email != nil {
		lead.Email = params.Email
	}
	if params.Classification != nil {
		lead.Classification = *params.Classification
	}
	if params.VoidReasonSet {
		lead.VoidReason = params.VoidReason
	}
	if params.VoidReasonNoteSet {
		lead.VoidReasonNote = params.VoidReasonNote
	}
	if params.Source != nil {
		lead.Source = params.Source
	}
	if params.BudgetMin != nil {
		lead.BudgetMin = params.BudgetMin
	}
	if params.BudgetMax != nil {
		lead.BudgetMax = params.BudgetMax
	}
	if params.Status != nil {
		lead.Status = *params.Status
	}
	if params.AssignedAgentIDSet {
		lead.AssignedAgentID = params.AssignedAgentID
	}
	if params.PriorityScore != nil {
		lead.PriorityScore = *params.PriorityScore
	}
	if params.InvestmentScore != nil {
		lead.InvestmentScore = *params.InvestmentScore
	}
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) Convert(_ context.Context, id uuid.UUID, status string) (repository.Lead, bool, error) {
	lead, ok := f.leads[id]
	if !ok || lead.Status == status {
		return repository.Lead{}, false, nil
	}
	lead.Status = status
	f.leads[id] = lead
	return lead, true, nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) ([]repository.Lead, int, error) {
	matched := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if params.AssignedAgentID != nil {
			if lead.AssignedAgentID == nil || *lead.AssignedAgentID != *params.AssignedAgentID {
				continue
			}
		}
		matched = append(matched, lead)
	}
	total := len(matched)
	if params.Offset >= total {
		return nil, total, nil
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return matched[params.Offset:end], total, nil
}

func (f *fakeStore) Assign(_ context.Context, params repository.AssignParams, outbox func(uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error) {
	lead, ok := f.leads[params.LeadID]
	if !ok {
		return repository.Lead{}, repository.Assignment{}, repository.ErrNotFound
	}
	assignment := repository.Assignment{
		ID:         uuid.New(),
		LeadID:     params.LeadID,
		FromAgent:  params.FromAgent,
		ToAgent:    params.ToAgent,
		AssignedBy: params.AssignedBy,
		Reason:     params.Reason,
	}
	f.assignments[params.LeadID] = append(f.assignments[params.LeadID], assignment)
	agentID := params.ToAgent
	lead.AssignedAgentID = &agentID
	if params.AdvanceStatus != nil {
		lead.Status = *params.AdvanceStatus
	}
	f.leads[params.LeadID] = lead
	if outbox != nil {
		f.outbox = append(f.outbox, outbox(assignment.ID)...)
	}
	return lead, assignment, nil
}

func (f *fakeStore) ListAssignments(_ context.Context, leadID uuid.UUID) ([]repository.Assignment, error) {
	return f.assignments[leadID], nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	return nil
}

type fakeAgents struct {
	agents map[uuid.UUID]Agent
}

func (f *fakeAgents) GetAgent(_ context.Context, id uuid.UUID) (Agent, error) {
	agent, ok := f.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return agent, nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) countByName(name string) int {
	count := 0
	for _, event := range f.published {
		if event.EventName() == name {
			count++
		}
	}
	return count
}

type fixture struct {
	service *Service
	store   *fakeStore
	agents  *fakeAgents
	bus     *fakeBus
}

func newFixture(t *testing.T, scope string) *fixture {
	t.Helper()
	store := newFakeStore()
	agents := &fakeAgents{agents: make(map[uuid.UUID]Agent)}
	bus := &fakeBus{}
	service := New(store, agents, bus, NewPhoneUniquenessPolicy(staticPolicyConfig{scope: scope}), logger.New("test"))
	return &fixture{service: service, store: store, agents: agents, bus: bus}
}

func (f *fixture) addAgent(role string) uuid.UUID {
	id := uuid.New()
	f.agents.agents[id] = Agent{ID: id, Name: "Agent " + id.String()[:8], Role: role}
	return id
}

func admin(id uuid.UUID) httpkit.Identity {
	return httpkit.NewIdentity(id, []string{RoleAdmin})
}

func salesAgent(id uuid.UUID) httpkit.Identity {
	return httpkit.NewIdentity(id, []string{RoleSalesAgent})
}

func TestCreateAnonymousLead(t *testing.T) {
	f := newFixture(t, "global")

	resp, err := f.service.Create(context.Background(), httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.System.LeadStatus != transport.LeadStatusNew {
		t.Errorf("leadStatus = %q, want New", resp.System.LeadStatus)
	}
	if resp.System.AssignedAgent != nil {
		t.Errorf("assignedAgent = %v, want nil", resp.System.AssignedAgent)
	}
	if resp.Identity.Phone != "+919000000001" {
		t.Errorf("phone = %q, want normalized E.164", resp.Identity.Phone)
	}
}

func TestCreateDuplicatePhoneConflict(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()

	if _, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "First", Phone: "+919000000001"},
	}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Second", Phone: "09000000001"},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second Create() error = %v, want conflict", err)
	}
	if len(f.store.leads) != 1 {
		t.Errorf("lead count = %d, want 1", len(f.store.leads))
	}
}

func TestCreatePerAgentScopeAllowsDuplicateAcrossAgents(t *testing.T) {
	f := newFixture(t, "per_agent")
	ctx := context.Background()
	agentA := f.addAgent(RoleSalesAgent)
	agentB := f.addAgent(RoleSalesAgent)

	if _, err := f.service.Create(ctx, salesAgent(agentA), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "First", Phone: "+919000000001"},
	}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	if _, err := f.service.Create(ctx, salesAgent(agentB), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Second", Phone: "+919000000001"},
	}); err != nil {
		t.Fatalf("second Create() error = %v, want success under per-agent scope", err)
	}
	if len(f.store.leads) != 2 {
		t.Errorf("lead count = %d, want 2", len(f.store.leads))
	}
}

func TestCreateBySalesAgentSelfAssigns(t *testing.T) {
	f := newFixture(t, "global")
	agentID := f.addAgent(RoleSalesAgent)

	resp, err := f.service.Create(context.Background(), salesAgent(agentID), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Buyer", Phone: "+919000000002"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.System.AssignedAgent == nil || *resp.System.AssignedAgent != agentID {
		t.Fatalf("assignedAgent = %v, want %v", resp.System.AssignedAgent, agentID)
	}
	if resp.System.LeadStatus != transport.LeadStatusContacted {
		t.Errorf("leadStatus = %q, want Contacted after assignment at creation", resp.System.LeadStatus)
	}
	if got := f.bus.countByName(events.LeadAssigned{}.EventName()); got != 1 {
		t.Errorf("LeadAssigned events = %d, want 1", got)
	}
}

func TestCreateAssignedRecordsHistoryAndNotifications(t *testing.T) {
	f := newFixture(t, "global")
	adminID := f.addAgent(RoleAdmin)
	agentID := f.addAgent(RoleSalesAgent)

	resp, err := f.service.Create(context.Background(), admin(adminID), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Buyer", Phone: "+919000000004"},
		System: &transport.SystemCreateBlock{
			AssignedAgent: transport.OptionalUUID{Set: true, Valid: true, Value: agentID},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(resp.System.AssignmentHistory) != 1 {
		t.Fatalf("history entries in response = %d, want 1", len(resp.System.AssignmentHistory))
	}
	stored := f.store.assignments[resp.ID]
	if len(stored) != 1 {
		t.Fatalf("stored history entries = %d, want 1", len(stored))
	}
	if stored[0].FromAgent != nil {
		t.Errorf("fromAgent = %v, want nil on first assignment", stored[0].FromAgent)
	}
	if stored[0].ToAgent != agentID {
		t.Errorf("toAgent = %v, want %v", stored[0].ToAgent, agentID)
	}
	// Assigned agent plus the creating admin each get a durable notification.
	if len(f.store.outbox) != 2 {
		t.Fatalf("outbox entries = %d, want 2", len(f.store.outbox))
	}
	kinds := map[string]bool{}
	for _, entry := range f.store.outbox {
		kinds[entry.Kind] = true
	}
	if !kinds["lead_assigned"] || !kinds["assignment_confirmed"] {
		t.Errorf("outbox kinds = %v, want lead_assigned and assignment_confirmed", kinds)
	}
	if got := f.bus.countByName(events.LeadAssigned{}.EventName()); got != 1 {
		t.Errorf("LeadAssigned events = %d, want 1", got)
	}
}

func TestCreateAndUpdateNormalizeEmail(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)

	created, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{
			FullName: "Buyer",
			Phone:    "+919000000005",
			Email:    "  Amit.Verma@Example.COM ",
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Identity.Email == nil || *created.Identity.Email != "amit.verma@example.com" {
		t.Errorf("email after create = %v, want amit.verma@example.com", created.Identity.Email)
	}

	newEmail := " Buyer@OTHER.org"
	updated, err := f.service.Update(ctx, admin(adminID), created.ID, transport.UpdateLeadRequest{
		Identity: &transport.UpdateIdentityBlock{Email: &newEmail},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Identity.Email == nil || *updated.Identity.Email != "buyer@other.org" {
		t.Errorf("email after update = %v, want buyer@other.org", updated.Identity.Email)
	}
}

func TestCreatePerAgentScopeChecksUnassignedBook(t *testing.T) {
	f := newFixture(t, "per_agent")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentID := f.addAgent(RoleSalesAgent)

	if _, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "First", Phone: "+919000000001"},
	}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	// Same phone in an agent's book is a different scope, so it goes through.
	if _, err := f.service.Create(ctx, admin(adminID), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Second", Phone: "+919000000001"},
		System: &transport.SystemCreateBlock{
			AssignedAgent: transport.OptionalUUID{Set: true, Valid: true, Value: agentID},
		},
	}); err != nil {
		t.Fatalf("assigned Create() error = %v", err)
	}

	// The unassigned book still holds the first lead, even though a newer
	// lead with the same phone exists elsewhere.
	_, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Third", Phone: "+919000000001"},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("third Create() error = %v, want conflict", err)
	}
	if len(f.store.leads) != 2 {
		t.Errorf("lead count = %d, want 2", len(f.store.leads))
	}
}

func TestCreateVoidWithoutReasonFails(t *testing.T) {
	f := newFixture(t, "global")
	void := transport.ClassificationVoid

	_, err := f.service.Create(context.Background(), httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity:      transport.IdentityBlock{FullName: "Buyer", Phone: "+919000000003"},
		Qualification: &transport.QualificationBlock{Classification: &void},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Create() error = %v, want validation", err)
	}
}

func TestAssignFirstTime(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentID := f.addAgent(RoleSalesAgent)

	created, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resp, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentID.String()})
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if resp.System.AssignedAgent == nil || *resp.System.AssignedAgent != agentID {
		t.Fatalf("assignedAgent = %v, want %v", resp.System.AssignedAgent, agentID)
	}
	if resp.System.LeadStatus != transport.LeadStatusContacted {
		t.Errorf("leadStatus = %q, want Contacted after first assignment", resp.System.LeadStatus)
	}
	if len(resp.System.AssignmentHistory) != 1 {
		t.Fatalf("history entries = %d, want 1", len(resp.System.AssignmentHistory))
	}
	// New agent plus the assigning actor get a durable notification each.
	if len(f.store.outbox) != 2 {
		t.Errorf("outbox entries = %d, want 2", len(f.store.outbox))
	}
}

func TestAssignSameAgentIsIdempotent(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentID := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	req := transport.AssignLeadRequest{AgentID: agentID.String()}
	if _, err := f.service.Assign(ctx, admin(adminID), created.ID, req); err != nil {
		t.Fatalf("first Assign() error = %v", err)
	}
	historyBefore := len(f.store.assignments[created.ID])
	outboxBefore := len(f.store.outbox)
	eventsBefore := f.bus.countByName(events.LeadAssigned{}.EventName())

	resp, err := f.service.Assign(ctx, admin(adminID), created.ID, req)
	if err != nil {
		t.Fatalf("repeat Assign() error = %v", err)
	}
	if resp.System.AssignedAgent == nil || *resp.System.AssignedAgent != agentID {
		t.Errorf("assignedAgent = %v, want unchanged %v", resp.System.AssignedAgent, agentID)
	}
	if got := len(f.store.assignments[created.ID]); got != historyBefore {
		t.Errorf("history entries = %d, want %d (no append)", got, historyBefore)
	}
	if got := len(f.store.outbox); got != outboxBefore {
		t.Errorf("outbox entries = %d, want %d (no new notification)", got, outboxBefore)
	}
	if got := f.bus.countByName(events.LeadAssigned{}.EventName()); got != eventsBefore {
		t.Errorf("LeadAssigned events = %d, want %d", got, eventsBefore)
	}
}

func TestReassignNotifiesAllParties(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentA := f.addAgent(RoleSalesAgent)
	agentB := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if _, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentA.String()}); err != nil {
		t.Fatalf("first Assign() error = %v", err)
	}
	outboxBefore := len(f.store.outbox)

	reason := "territory change"
	resp, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{
		AgentID:        agentB.String(),
		ReassignReason: &reason,
	})
	if err != nil {
		t.Fatalf("reassign error = %v", err)
	}

	if len(resp.System.AssignmentHistory) != 2 {
		t.Fatalf("history entries = %d, want 2", len(resp.System.AssignmentHistory))
	}
	last := resp.System.AssignmentHistory[1]
	if last.FromAgent == nil || *last.FromAgent != agentA {
		t.Errorf("fromAgent = %v, want %v", last.FromAgent, agentA)
	}
	if last.ToAgent != agentB {
		t.Errorf("toAgent = %v, want %v", last.ToAgent, agentB)
	}
	if last.Reason != reason {
		t.Errorf("reason = %q, want %q", last.Reason, reason)
	}
	// New agent, previous agent, and the actor each get one.
	if got := len(f.store.outbox) - outboxBefore; got != 3 {
		t.Errorf("new outbox entries = %d, want 3", got)
	}
}

func TestAssignBySalesAgentForbidden(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	agentID := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	_, err := f.service.Assign(ctx, salesAgent(agentID), created.ID, transport.AssignLeadRequest{AgentID: agentID.String()})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("Assign() error = %v, want forbidden", err)
	}
}

func TestAssignUnknownAgentNotFound(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	_, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: uuid.New().String()})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Assign() error = %v, want not found", err)
	}
}

func TestAssignMalformedAgentID(t *testing.T) {
	f := newFixture(t, "global")
	adminID := f.addAgent(RoleAdmin)

	_, err := f.service.Assign(context.Background(), admin(adminID), uuid.New(), transport.AssignLeadRequest{AgentID: "agent1"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Assign() error = %v, want validation", err)
	}
}

func TestConvertTwiceFails(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentID := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if _, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentID.String()}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	resp, err := f.service.Convert(ctx, admin(adminID), created.ID)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if resp.System.LeadStatus != transport.LeadStatusConverted {
		t.Errorf("leadStatus = %q, want Converted", resp.System.LeadStatus)
	}
	if got := f.bus.countByName(events.LeadConverted{}.EventName()); got != 1 {
		t.Errorf("LeadConverted events = %d, want 1", got)
	}

	_, err = f.service.Convert(ctx, admin(adminID), created.ID)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("second Convert() error = %v, want bad request", err)
	}
	if f.store.leads[created.ID].Status != string(transport.LeadStatusConverted) {
		t.Errorf("status after failed convert = %q, want Converted", f.store.leads[created.ID].Status)
	}
}

func TestAssignConvertedLeadRejected(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentA := f.addAgent(RoleSalesAgent)
	agentB := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if _, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentA.String()}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := f.service.Convert(ctx, admin(adminID), created.ID); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	_, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentB.String()})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("Assign() after convert error = %v, want bad request", err)
	}
	if got := len(f.store.assignments[created.ID]); got != 1 {
		t.Errorf("history entries = %d, want 1 (no handoff after conversion)", got)
	}
	if got := f.store.leads[created.ID].AssignedAgentID; got == nil || *got != agentA {
		t.Errorf("assignedAgent = %v, want unchanged %v", got, agentA)
	}
}

func TestGetOwnershipForbidden(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentA := f.addAgent(RoleSalesAgent)
	agentB := f.addAgent(RoleSalesAgent)

	created, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Amit Verma", Phone: "+919000000001"},
	})
	if _, err := f.service.Assign(ctx, admin(adminID), created.ID, transport.AssignLeadRequest{AgentID: agentA.String()}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if _, err := f.service.Get(ctx, salesAgent(agentB), created.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("Get() by other agent error = %v, want forbidden", err)
	}
	if _, err := f.service.Get(ctx, salesAgent(agentA), created.ID); err != nil {
		t.Errorf("Get() by owning agent error = %v", err)
	}
	if _, err := f.service.Get(ctx, admin(adminID), created.ID); err != nil {
		t.Errorf("Get() by admin error = %v", err)
	}
}

func TestListPagination(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)

	for i := 0; i < 15; i++ {
		if _, err := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
			Identity: transport.IdentityBlock{FullName: "Buyer", Phone: uniquePhone(i)},
		}); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	resp, err := f.service.List(ctx, admin(adminID), transport.ListLeadsRequest{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(resp.Data) != 5 {
		t.Errorf("page 2 records = %d, want 5", len(resp.Data))
	}
	if resp.Pagination.Total != 15 {
		t.Errorf("total = %d, want 15", resp.Pagination.Total)
	}
	if resp.Pagination.TotalPages != 2 {
		t.Errorf("totalPages = %d, want 2", resp.Pagination.TotalPages)
	}
}

func TestListScopedToOwnBookForSalesAgent(t *testing.T) {
	f := newFixture(t, "global")
	ctx := context.Background()
	adminID := f.addAgent(RoleAdmin)
	agentA := f.addAgent(RoleSalesAgent)
	agentB := f.addAgent(RoleSalesAgent)

	mine, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Mine", Phone: "+919000000001"},
	})
	other, _ := f.service.Create(ctx, httpkit.Anonymous(), transport.CreateLeadRequest{
		Identity: transport.IdentityBlock{FullName: "Other", Phone: "+919000000002"},
	})
	f.service.Assign(ctx, admin(adminID), mine.ID, transport.AssignLeadRequest{AgentID: agentA.String()})
	f.service.Assign(ctx, admin(adminID), other.ID, transport.AssignLeadRequest{AgentID: agentB.String()})

	resp, err := f.service.List(ctx, salesAgent(agentA), transport.ListLeadsRequest{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("records = %d, want 1", len(resp.Data))
	}
	if resp.Data[0].ID != mine.ID {
		t.Errorf("record = %v, want own lead %v", resp.Data[0].ID, mine.ID)
	}
}

func uniquePhone(i int) string {
	return "+9190000000" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
