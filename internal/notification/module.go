// Package notification turns domain events into user-visible notifications.
// In-app records are written when the event fires; durable email delivery
// runs through the outbox so a crashed worker retries instead of losing the
// message. Notification failures never propagate back into lead mutations.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/internal/notification/email"
	"estate_crm_backend/internal/notification/handler"
	"estate_crm_backend/internal/notification/inapp"
	"estate_crm_backend/internal/notification/outbox"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KindLeadAssigned        = "lead_assigned"
	KindLeadReassignedAway  = "lead_reassigned_away"
	KindAssignmentConfirmed = "assignment_confirmed"
	KindStatusUpdate        = "status_update"
)

// maxDeliveryAttempts bounds retries before an outbox row is parked as failed.
const maxDeliveryAttempts = 5

// Recipient is the contact slice needed to deliver an email.
type Recipient struct {
	Name  string
	Email string
}

// RecipientDirectory resolves recipient ids against the user store.
type RecipientDirectory interface {
	GetRecipient(ctx context.Context, id uuid.UUID) (Recipient, error)
}

// InAppSender writes in-app notification records.
type InAppSender interface {
	Send(ctx context.Context, p inapp.SendParams) error
}

// OutboxStore is the outbox surface the module delivers from.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	inappSvc   *inapp.Service
	inappPort  InAppSender
	outboxRepo OutboxStore
	sender     email.Sender
	recipients RecipientDirectory
	handler    *handler.Handler
	log        *logger.Logger
}

// NewModule wires the notification module and subscribes it to the domain
// events it reacts to.
func NewModule(pool *pgxpool.Pool, bus events.Bus, recipients RecipientDirectory, sender email.Sender, log *logger.Logger) *Module {
	inappRepo := inapp.NewRepository(pool)
	inappSvc := inapp.NewService(inappRepo, log)
	outboxRepo := outbox.New(pool)

	m := &Module{
		inappSvc:   inappSvc,
		inappPort:  inappSvc,
		outboxRepo: outboxRepo,
		sender:     sender,
		recipients: recipients,
		handler:    handler.New(inappSvc),
		log:        log,
	}
	m.subscribe(bus)
	return m
}

// newModuleForTest builds a module around fakes, bypassing the database.
func newModuleForTest(inappPort InAppSender, outboxRepo OutboxStore, sender email.Sender, recipients RecipientDirectory, log *logger.Logger) *Module {
	return &Module{
		inappPort:  inappPort,
		outboxRepo: outboxRepo,
		sender:     sender,
		recipients: recipients,
		log:        log,
	}
}

func (m *Module) subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadAssigned)
		if !ok {
			return nil
		}
		return m.handleLeadAssigned(ctx, e)
	}))

	bus.Subscribe(events.LeadConverted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadConverted)
		if !ok {
			return nil
		}
		return m.handleLeadConverted(ctx, e)
	}))

	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.NotificationOutboxDue)
		if !ok {
			return nil
		}
		return m.deliverOutboxRecord(ctx, e.OutboxID)
	}))
}

// handleLeadAssigned writes the in-app records for an assignment: the new
// agent always, the previous agent when one existed, and the assigning actor
// when they are not the new agent.
func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	leadID := e.LeadID
	_ = m.inappPort.Send(ctx, inapp.SendParams{
		UserID:            e.ToAgentID,
		Type:              KindLeadAssigned,
		Title:             "New lead assigned",
		Message:           fmt.Sprintf("Lead %s has been assigned to you.", e.LeadName),
		RelatedEntityType: "lead",
		RelatedEntityID:   &leadID,
	})

	if e.FromAgentID != nil && *e.FromAgentID != e.ToAgentID {
		_ = m.inappPort.Send(ctx, inapp.SendParams{
			UserID:            *e.FromAgentID,
			Type:              KindLeadReassignedAway,
			Title:             "Lead reassigned",
			Message:           fmt.Sprintf("Lead %s has been reassigned to another agent.", e.LeadName),
			RelatedEntityType: "lead",
			RelatedEntityID:   &leadID,
		})
	}

	if e.AssignedByID != nil && *e.AssignedByID != e.ToAgentID {
		_ = m.inappPort.Send(ctx, inapp.SendParams{
			UserID:            *e.AssignedByID,
			Type:              KindAssignmentConfirmed,
			Title:             "Assignment confirmed",
			Message:           fmt.Sprintf("Lead %s was assigned as requested.", e.LeadName),
			RelatedEntityType: "lead",
			RelatedEntityID:   &leadID,
		})
	}

	return nil
}

// handleLeadConverted records the status update for the assigned agent and
// queues a durable email. The dedupe key makes a replayed event harmless.
func (m *Module) handleLeadConverted(ctx context.Context, e events.LeadConverted) error {
	if e.AssignedAgentID == nil {
		return nil
	}

	leadID := e.LeadID
	_ = m.inappPort.Send(ctx, inapp.SendParams{
		UserID:            *e.AssignedAgentID,
		Type:              KindStatusUpdate,
		Title:             "Lead converted",
		Message:           fmt.Sprintf("Lead %s has been converted to a customer.", e.LeadName),
		RelatedEntityType: "lead",
		RelatedEntityID:   &leadID,
	})

	_, _, err := m.outboxRepo.Insert(ctx, outbox.InsertParams{
		DedupeKey:   fmt.Sprintf("%s:converted:%s", e.LeadID, *e.AssignedAgentID),
		LeadID:      &leadID,
		RecipientID: *e.AssignedAgentID,
		Kind:        KindStatusUpdate,
		Payload: map[string]interface{}{
			"leadId":   e.LeadID.String(),
			"leadName": e.LeadName,
		},
	})
	if err != nil {
		m.log.NotificationError(KindStatusUpdate, e.AssignedAgentID.String(), err)
	}

	return nil
}

// deliverOutboxRecord sends the email behind one outbox row. Transient
// failures requeue the row until the attempt budget runs out.
func (m *Module) deliverOutboxRecord(ctx context.Context, id uuid.UUID) error {
	rec, err := m.outboxRepo.GetByID(ctx, id)
	if err != nil {
		m.log.NotificationError("outbox", id.String(), err)
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := m.outboxRepo.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	recipient, err := m.recipients.GetRecipient(ctx, rec.RecipientID)
	if err != nil {
		// Recipient is gone; retrying cannot succeed.
		_ = m.outboxRepo.MarkFailed(ctx, rec.ID, fmt.Sprintf("resolve recipient: %v", err))
		return err
	}

	subject, body := renderEmail(rec, recipient)
	if err := m.sender.Send(ctx, recipient.Email, subject, body); err != nil {
		m.log.NotificationError(rec.Kind, recipient.Email, err)
		if rec.Attempts+1 >= maxDeliveryAttempts {
			_ = m.outboxRepo.MarkFailed(ctx, rec.ID, err.Error())
		} else {
			msg := err.Error()
			_ = m.outboxRepo.MarkPending(ctx, rec.ID, &msg)
		}
		return err
	}

	return m.outboxRepo.MarkSucceeded(ctx, rec.ID)
}

func renderEmail(rec outbox.Record, recipient Recipient) (string, string) {
	var payload struct {
		LeadName  string `json:"leadName"`
		Reason    string `json:"reason"`
		NewAgent  string `json:"newAgent"`
		AgentName string `json:"agentName"`
	}
	_ = json.Unmarshal(rec.Payload, &payload)

	switch rec.Kind {
	case KindLeadAssigned:
		return "New lead assigned",
			fmt.Sprintf("Hi %s,\n\nLead %s has been assigned to you (%s).", recipient.Name, payload.LeadName, payload.Reason)
	case KindLeadReassignedAway:
		return "Lead reassigned",
			fmt.Sprintf("Hi %s,\n\nLead %s has been reassigned to %s.", recipient.Name, payload.LeadName, payload.NewAgent)
	case KindAssignmentConfirmed:
		return "Assignment confirmed",
			fmt.Sprintf("Hi %s,\n\nLead %s was assigned to %s as requested.", recipient.Name, payload.LeadName, payload.AgentName)
	case KindStatusUpdate:
		return "Lead converted",
			fmt.Sprintf("Hi %s,\n\nLead %s has been converted to a customer.", recipient.Name, payload.LeadName)
	default:
		return "Notification", fmt.Sprintf("Hi %s,\n\nYou have a new notification.", recipient.Name)
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
