// Package lifecycle is the single mutator for leads. Every write path
// (creation, partial update, assignment, conversion) funnels through one
// service so the pipeline rules live in one place.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/leads/scoring"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	RoleAdmin      = "admin"
	RoleSalesAgent = "sales_agent"
)

// ErrAgentNotFound is returned by AgentDirectory implementations when the
// id does not resolve to an assignable user.
var ErrAgentNotFound = errors.New("agent not found")

// Agent is the slice of a user account the lifecycle service needs.
type Agent struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}

// AgentDirectory resolves agent ids against the user store.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id uuid.UUID) (Agent, error)
}

// Store is the persistence surface the service mutates through.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	CreateAssigned(ctx context.Context, params repository.CreateLeadParams, assignedBy *uuid.UUID, reason string, outbox func(lead repository.Lead, historyID uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetByPhone(ctx context.Context, phone string) (repository.Lead, error)
	GetByPhoneForAgent(ctx context.Context, phone string, agentID *uuid.UUID) (repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	Convert(ctx context.Context, id uuid.UUID, status string) (repository.Lead, bool, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error)
	Assign(ctx context.Context, params repository.AssignParams, outbox func(historyID uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error)
	ListAssignments(ctx context.Context, leadID uuid.UUID) ([]repository.Assignment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo         Store
	agents       AgentDirectory
	bus          events.Bus
	phonePolicy  PhoneUniquenessPolicy
	statusPolicy StatusAdvancementPolicy
	log          *logger.Logger
}

func New(repo Store, agents AgentDirectory, bus events.Bus, phonePolicy PhoneUniquenessPolicy, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		agents:      agents,
		bus:         bus,
		phonePolicy: phonePolicy,
		log:         log,
	}
}

// Create persists a new lead. Anonymous callers may create leads (web form
// intake); authenticated sales agents become the assignee unless the request
// names one explicitly.
func (s *Service) Create(ctx context.Context, actor httpkit.Identity, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	normalized := phone.NormalizeE164(req.Identity.Phone)
	if normalized == "" {
		return transport.LeadResponse{}, apperr.Validation("phone is not a valid number")
	}

	qual := req.Qualification
	if qual == nil {
		qual = &transport.QualificationBlock{}
	}
	if err := validateQualification(*qual); err != nil {
		return transport.LeadResponse{}, err
	}

	assignee, err := s.resolveInitialAssignee(ctx, actor, req.System)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	var assigneeID *uuid.UUID
	if assignee != nil {
		assigneeID = &assignee.ID
	}

	if err := s.checkDuplicatePhone(ctx, normalized, assigneeID, nil); err != nil {
		return transport.LeadResponse{}, err
	}

	status := transport.LeadStatusNew
	explicitStatus := req.System != nil && req.System.LeadStatus != nil
	if explicitStatus {
		status = *req.System.LeadStatus
	}
	if assigneeID != nil && !explicitStatus {
		if next := s.statusPolicy.OnAssignment(status, true); next != nil {
			status = *next
		}
	}

	classification := transport.ClassificationCold
	if qual.Classification != nil {
		classification = *qual.Classification
	}

	scoreIn := scoring.Input{
		Classification: classification,
		Status:         status,
		BudgetMin:      qual.BudgetMin,
		BudgetMax:      qual.BudgetMax,
	}

	params := repository.CreateLeadParams{
		FullName:        req.Identity.FullName,
		Phone:           normalized,
		Classification:  string(classification),
		Source:          qual.Source,
		BudgetMin:       qual.BudgetMin,
		BudgetMax:       qual.BudgetMax,
		Status:          string(status),
		AssignedAgentID: assigneeID,
		PriorityScore:   scoring.Priority(scoreIn),
		InvestmentScore: scoring.Investment(scoreIn),
		Profile:         req.Profile,
	}
	if email := normalizeEmail(req.Identity.Email); email != "" {
		params.Email = &email
	}
	if qual.VoidReason != nil {
		reason := string(*qual.VoidReason)
		params.VoidReason = &reason
	}
	params.VoidReasonNote = qual.VoidReasonNote

	var (
		lead          repository.Lead
		history       []repository.Assignment
		assignedEvent *events.LeadAssigned
	)
	if assignee == nil {
		lead, err = s.repo.Create(ctx, params)
		if err != nil {
			return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "create lead", err)
		}
	} else {
		// A lead born assigned gets the same transactional treatment as a
		// later handoff: history entry and outbox rows commit with the lead.
		const assignReason = "Assigned at creation"

		var actorID *uuid.UUID
		if actor.IsAuthenticated() {
			id := actor.UserID()
			actorID = &id
		}

		agent := *assignee
		outbox := func(created repository.Lead, historyID uuid.UUID) []repository.OutboxEntry {
			entries := []repository.OutboxEntry{{
				DedupeKey:   assignmentDedupeKey(created.ID, historyID, agent.ID),
				RecipientID: agent.ID,
				Kind:        "lead_assigned",
				Payload: map[string]interface{}{
					"leadId":   created.ID.String(),
					"leadName": created.FullName,
					"reason":   assignReason,
				},
			}}
			if actorID != nil && *actorID != agent.ID {
				entries = append(entries, repository.OutboxEntry{
					DedupeKey:   assignmentDedupeKey(created.ID, historyID, *actorID),
					RecipientID: *actorID,
					Kind:        "assignment_confirmed",
					Payload: map[string]interface{}{
						"leadId":    created.ID.String(),
						"leadName":  created.FullName,
						"agentName": agent.Name,
					},
				})
			}
			return entries
		}

		var assignment repository.Assignment
		lead, assignment, err = s.repo.CreateAssigned(ctx, params, actorID, assignReason, outbox)
		if err != nil {
			return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "create lead", err)
		}
		history = []repository.Assignment{assignment}

		assignedEvent = &events.LeadAssigned{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       lead.ID,
			LeadName:     lead.FullName,
			HistoryID:    assignment.ID,
			ToAgentID:    agent.ID,
			AssignedByID: actorID,
			Reason:       assignReason,
		}
	}

	created := events.LeadCreated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FullName:        lead.FullName,
		Phone:           lead.Phone,
		AssignedAgentID: lead.AssignedAgentID,
	}
	if lead.Source != nil {
		created.Source = *lead.Source
	}
	s.bus.Publish(ctx, created)
	if assignedEvent != nil {
		s.bus.Publish(ctx, *assignedEvent)
	}

	return toLeadResponse(lead, history), nil
}

// Update applies a partial update. Changing the assigned agent through this
// path is routed into the same assignment flow as the dedicated endpoint, so
// history and notifications stay consistent no matter which surface the
// client used.
func (s *Service) Update(ctx context.Context, actor httpkit.Identity, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	lead, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if req.System != nil && req.System.AssignedAgent.Set {
		if req.System.AssignedAgent.Valid {
			if _, err := s.assignTo(ctx, actor, lead, req.System.AssignedAgent.Value, nil); err != nil {
				return transport.LeadResponse{}, err
			}
		} else {
			if err := s.requireAssigner(actor); err != nil {
				return transport.LeadResponse{}, err
			}
			if _, err := s.repo.Update(ctx, id, repository.UpdateLeadParams{AssignedAgentIDSet: true}); err != nil {
				return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "unassign lead", err)
			}
		}
		// Re-read so the field updates below see the new assignment.
		lead, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "reload lead", err)
		}
	}

	params, err := s.buildUpdateParams(ctx, lead, req)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "update lead", err)
	}

	history, err := s.repo.ListAssignments(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "list assignments", err)
	}
	return toLeadResponse(updated, history), nil
}

// Assign hands the lead to an agent. Assigning to the current agent is an
// idempotent no-op: no history entry, no notification, success response.
func (s *Service) Assign(ctx context.Context, actor httpkit.Identity, leadID uuid.UUID, req transport.AssignLeadRequest) (transport.LeadResponse, error) {
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		return transport.LeadResponse{}, apperr.Validation("agentId is not a valid id")
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "get lead", err)
	}

	updated, err := s.assignTo(ctx, actor, lead, agentID, req.ReassignReason)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	history, err := s.repo.ListAssignments(ctx, leadID)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "list assignments", err)
	}
	return toLeadResponse(updated, history), nil
}

func (s *Service) assignTo(ctx context.Context, actor httpkit.Identity, lead repository.Lead, agentID uuid.UUID, reason *string) (repository.Lead, error) {
	if err := s.requireAssigner(actor); err != nil {
		return repository.Lead{}, err
	}

	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return repository.Lead{}, apperr.NotFound("agent not found")
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "resolve agent", err)
	}

	if lead.AssignedAgentID != nil && *lead.AssignedAgentID == agent.ID {
		return lead, nil
	}

	if s.statusPolicy.Terminal(transport.LeadStatus(lead.Status)) {
		return repository.Lead{}, apperr.BadRequest("lead is already converted")
	}

	firstAssignment := lead.AssignedAgentID == nil
	assignReason := "Reassigned"
	if firstAssignment {
		assignReason = "Initial assignment"
	}
	if reason != nil && *reason != "" {
		assignReason = *reason
	}

	var advance *string
	if next := s.statusPolicy.OnAssignment(transport.LeadStatus(lead.Status), firstAssignment); next != nil {
		status := string(*next)
		advance = &status
	}

	actorID := actor.UserID()
	params := repository.AssignParams{
		LeadID:        lead.ID,
		FromAgent:     lead.AssignedAgentID,
		ToAgent:       agent.ID,
		AssignedBy:    &actorID,
		Reason:        assignReason,
		AdvanceStatus: advance,
	}

	fromAgent := lead.AssignedAgentID
	outbox := func(historyID uuid.UUID) []repository.OutboxEntry {
		entries := []repository.OutboxEntry{{
			DedupeKey:   assignmentDedupeKey(lead.ID, historyID, agent.ID),
			RecipientID: agent.ID,
			Kind:        "lead_assigned",
			Payload: map[string]interface{}{
				"leadId":   lead.ID.String(),
				"leadName": lead.FullName,
				"reason":   assignReason,
			},
		}}
		if fromAgent != nil {
			entries = append(entries, repository.OutboxEntry{
				DedupeKey:   assignmentDedupeKey(lead.ID, historyID, *fromAgent),
				RecipientID: *fromAgent,
				Kind:        "lead_reassigned_away",
				Payload: map[string]interface{}{
					"leadId":   lead.ID.String(),
					"leadName": lead.FullName,
					"newAgent": agent.Name,
				},
			})
		}
		if actorID != agent.ID {
			entries = append(entries, repository.OutboxEntry{
				DedupeKey:   assignmentDedupeKey(lead.ID, historyID, actorID),
				RecipientID: actorID,
				Kind:        "assignment_confirmed",
				Payload: map[string]interface{}{
					"leadId":    lead.ID.String(),
					"leadName":  lead.FullName,
					"agentName": agent.Name,
				},
			})
		}
		return entries
	}

	updated, assignment, err := s.repo.Assign(ctx, params, outbox)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "assign lead", err)
	}

	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       updated.ID,
		LeadName:     updated.FullName,
		HistoryID:    assignment.ID,
		FromAgentID:  fromAgent,
		ToAgentID:    agent.ID,
		AssignedByID: &actorID,
		Reason:       assignReason,
	})

	return updated, nil
}

// Convert stamps the terminal status. A second conversion attempt is a user
// error, not a silent success.
func (s *Service) Convert(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if lead.Status == string(transport.LeadStatusConverted) {
		return transport.LeadResponse{}, apperr.BadRequest("lead is already converted")
	}

	converted, changed, err := s.repo.Convert(ctx, id, string(transport.LeadStatusConverted))
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "convert lead", err)
	}
	if !changed {
		// Lost the race with a concurrent conversion.
		return transport.LeadResponse{}, apperr.BadRequest("lead is already converted")
	}

	if converted.AssignedAgentID != nil {
		s.bus.Publish(ctx, events.LeadConverted{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          converted.ID,
			LeadName:        converted.FullName,
			AssignedAgentID: converted.AssignedAgentID,
		})
	}

	history, err := s.repo.ListAssignments(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "list assignments", err)
	}
	return toLeadResponse(converted, history), nil
}

// List returns a page of leads. Sales agents only see their own book.
func (s *Service) List(ctx context.Context, actor httpkit.Identity, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 20
	}

	params := repository.ListParams{
		Search: req.Search,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if req.Status != nil {
		status := string(*req.Status)
		params.Status = &status
	}
	if req.Classification != nil {
		classification := string(*req.Classification)
		params.Classification = &classification
	}
	if s.restrictedToOwn(actor) {
		actorID := actor.UserID()
		params.AssignedAgentID = &actorID
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, apperr.Wrap(apperr.KindInternal, "list leads", err)
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, toLeadResponse(lead, nil))
	}

	totalPages := (total + limit - 1) / limit
	return transport.LeadListResponse{
		Data: items,
		Pagination: transport.Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// Get returns one lead with its assignment history.
func (s *Service) Get(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	history, err := s.repo.ListAssignments(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "list assignments", err)
	}
	return toLeadResponse(lead, history), nil
}

// CheckDuplicate reports whether a phone number would collide under the
// configured uniqueness policy before the caller submits the full form.
func (s *Service) CheckDuplicate(ctx context.Context, actor httpkit.Identity, rawPhone string) (transport.DuplicateCheckResponse, error) {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return transport.DuplicateCheckResponse{}, apperr.Validation("phone is not a valid number")
	}

	var scope *uuid.UUID
	if s.restrictedToOwn(actor) {
		actorID := actor.UserID()
		scope = &actorID
	}

	existing, err := s.findByPhone(ctx, normalized, scope)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.DuplicateCheckResponse{IsDuplicate: false}, nil
		}
		return transport.DuplicateCheckResponse{}, apperr.Wrap(apperr.KindInternal, "check duplicate", err)
	}

	resp := toLeadResponse(existing, nil)
	return transport.DuplicateCheckResponse{IsDuplicate: true, ExistingLead: &resp}, nil
}

// Delete soft-deletes a lead. Admin only.
func (s *Service) Delete(ctx context.Context, actor httpkit.Identity, id uuid.UUID) error {
	if !actor.HasRole(RoleAdmin) {
		return apperr.Forbidden("only admins may delete leads")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return apperr.Wrap(apperr.KindInternal, "delete lead", err)
	}
	return nil
}

func (s *Service) requireAssigner(actor httpkit.Identity) error {
	if !actor.HasRole(RoleAdmin) {
		return apperr.Forbidden("only admins may assign leads")
	}
	return nil
}

// restrictedToOwn reports whether the actor only sees leads in their own book.
func (s *Service) restrictedToOwn(actor httpkit.Identity) bool {
	return actor.IsAuthenticated() && actor.HasRole(RoleSalesAgent) && !actor.HasRole(RoleAdmin)
}

func (s *Service) getOwned(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "get lead", err)
	}
	if s.restrictedToOwn(actor) {
		if lead.AssignedAgentID == nil || *lead.AssignedAgentID != actor.UserID() {
			return repository.Lead{}, apperr.Forbidden("lead is assigned to another agent")
		}
	}
	return lead, nil
}

func (s *Service) resolveInitialAssignee(ctx context.Context, actor httpkit.Identity, system *transport.SystemCreateBlock) (*Agent, error) {
	var assigneeID *uuid.UUID
	switch {
	case system != nil && system.AssignedAgent.Set:
		if system.AssignedAgent.Valid {
			id := system.AssignedAgent.Value
			assigneeID = &id
		}
	case actor.IsAuthenticated() && actor.HasRole(RoleSalesAgent):
		id := actor.UserID()
		assigneeID = &id
	}

	if assigneeID == nil {
		return nil, nil
	}

	agent, err := s.agents.GetAgent(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, apperr.Validation("assigned agent does not exist")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "resolve agent", err)
	}
	return &agent, nil
}

// checkDuplicatePhone rejects a write that would collide under the
// configured policy. exclude skips the lead being updated.
func (s *Service) checkDuplicatePhone(ctx context.Context, normalized string, agentID *uuid.UUID, exclude *uuid.UUID) error {
	existing, err := s.findByPhone(ctx, normalized, scopeFor(s.phonePolicy, agentID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperr.Wrap(apperr.KindInternal, "duplicate phone check", err)
	}
	if exclude != nil && existing.ID == *exclude {
		return nil
	}
	if !s.phonePolicy.Conflicts(existing.AssignedAgentID, agentID) {
		return nil
	}
	return apperr.Conflict("a lead with this phone number already exists").
		WithDetails(map[string]string{"existingLeadId": existing.ID.String()})
}

func (s *Service) findByPhone(ctx context.Context, normalized string, scope *uuid.UUID) (repository.Lead, error) {
	if s.phonePolicy.Global() {
		return s.repo.GetByPhone(ctx, normalized)
	}
	// Per-agent scoping applies even when scope is nil: unassigned leads
	// form their own book, so the lookup must not fall back to the newest
	// lead regardless of assignee.
	return s.repo.GetByPhoneForAgent(ctx, normalized, scope)
}

func scopeFor(policy PhoneUniquenessPolicy, agentID *uuid.UUID) *uuid.UUID {
	if policy.Global() {
		return nil
	}
	return agentID
}

func (s *Service) buildUpdateParams(ctx context.Context, lead repository.Lead, req transport.UpdateLeadRequest) (repository.UpdateLeadParams, error) {
	params := repository.UpdateLeadParams{Profile: req.Profile}

	classification := transport.Classification(lead.Classification)
	status := transport.LeadStatus(lead.Status)
	budgetMin := lead.BudgetMin
	budgetMax := lead.BudgetMax

	if req.Identity != nil {
		params.FullName = req.Identity.FullName
		if req.Identity.Email != nil {
			email := normalizeEmail(*req.Identity.Email)
			params.Email = &email
		}
		if req.Identity.Phone != nil {
			normalized := phone.NormalizeE164(*req.Identity.Phone)
			if normalized == "" {
				return repository.UpdateLeadParams{}, apperr.Validation("phone is not a valid number")
			}
			if err := s.checkDuplicatePhone(ctx, normalized, lead.AssignedAgentID, &lead.ID); err != nil {
				return repository.UpdateLeadParams{}, err
			}
			params.Phone = &normalized
		}
	}

	if req.Qualification != nil {
		qual := *req.Qualification
		if qual.Classification != nil {
			classification = *qual.Classification
			value := string(classification)
			params.Classification = &value
		}
		if qual.VoidReason != nil {
			value := string(*qual.VoidReason)
			params.VoidReason = &value
			params.VoidReasonSet = true
		}
		if qual.VoidReasonNote != nil {
			params.VoidReasonNote = qual.VoidReasonNote
			params.VoidReasonNoteSet = true
		}
		params.Source = qual.Source
		if qual.BudgetMin != nil {
			budgetMin = qual.BudgetMin
			params.BudgetMin = qual.BudgetMin
		}
		if qual.BudgetMax != nil {
			budgetMax = qual.BudgetMax
			params.BudgetMax = qual.BudgetMax
		}

		// A Void classification needs a reason, either in this request or
		// already on the record.
		if classification == transport.ClassificationVoid &&
			params.VoidReason == nil && lead.VoidReason == nil {
			return repository.UpdateLeadParams{}, apperr.Validation("voidReason is required when classification is Void")
		}
	}

	if req.System != nil {
		if req.System.LeadStatus != nil {
			status = *req.System.LeadStatus
			value := string(status)
			params.Status = &value
		}
		params.LastContactedAt = req.System.LastContactedAt
	}

	scoreIn := scoring.Input{
		Classification: classification,
		Status:         status,
		BudgetMin:      budgetMin,
		BudgetMax:      budgetMax,
	}
	priority := scoring.Priority(scoreIn)
	investment := scoring.Investment(scoreIn)
	params.PriorityScore = &priority
	params.InvestmentScore = &investment

	return params, nil
}

func validateQualification(qual transport.QualificationBlock) error {
	if qual.BudgetMin != nil && qual.BudgetMax != nil && *qual.BudgetMin > *qual.BudgetMax {
		return apperr.Validation("budgetMin must not exceed budgetMax")
	}
	if qual.Classification != nil && *qual.Classification == transport.ClassificationVoid && qual.VoidReason == nil {
		return apperr.Validation("voidReason is required when classification is Void")
	}
	return nil
}

// normalizeEmail canonicalizes an address before it is stored or compared.
// Lookups against users go through a lower(email) index, so leads store the
// same shape.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func assignmentDedupeKey(leadID, historyID, recipientID uuid.UUID) string {
	return fmt.Sprintf("%s:assigned:%s:%s", leadID, historyID, recipientID)
}

func toLeadResponse(lead repository.Lead, history []repository.Assignment) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID: lead.ID,
		Identity: transport.IdentityResponse{
			FullName: lead.FullName,
			Phone:    lead.Phone,
			Email:    lead.Email,
		},
		Qualification: transport.QualificationResponse{
			Classification: transport.Classification(lead.Classification),
			VoidReasonNote: lead.VoidReasonNote,
			Source:         lead.Source,
			BudgetMin:      lead.BudgetMin,
			BudgetMax:      lead.BudgetMax,
		},
		System: transport.SystemResponse{
			LeadStatus:      transport.LeadStatus(lead.Status),
			AssignedAgent:   lead.AssignedAgentID,
			PriorityScore:   lead.PriorityScore,
			InvestmentScore: lead.InvestmentScore,
		},
		Profile:         lead.Profile,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
		LastContactedAt: lead.LastContactedAt,
		ConvertedAt:     lead.ConvertedAt,
	}
	if lead.VoidReason != nil {
		reason := transport.VoidReason(*lead.VoidReason)
		resp.Qualification.VoidReason = &reason
	}
	for _, entry := range history {
		resp.System.AssignmentHistory = append(resp.System.AssignmentHistory, transport.AssignmentEntry{
			ID:         entry.ID,
			FromAgent:  entry.FromAgent,
			ToAgent:    entry.ToAgent,
			AssignedBy: entry.AssignedBy,
			Reason:     entry.Reason,
			Timestamp:  entry.CreatedAt,
		})
	}
	return resp
}
