// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"estate_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created.
type LeadCreated struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	FullName        string     `json:"fullName"`
	Phone           string     `json:"phone"`
	Source          string     `json:"source,omitempty"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAssigned is published when a lead is assigned or reassigned to an agent.
// HistoryID references the assignment-history row written in the same
// transaction as the lead mutation.
type LeadAssigned struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	LeadName     string     `json:"leadName"`
	HistoryID    uuid.UUID  `json:"historyId"`
	FromAgentID  *uuid.UUID `json:"fromAgentId,omitempty"`
	ToAgentID    uuid.UUID  `json:"toAgentId"`
	AssignedByID *uuid.UUID `json:"assignedById,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadConverted is published when a lead's status moves to Converted.
type LeadConverted struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	LeadName        string     `json:"leadName"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler worker when an outbox
// entry is due for delivery.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
