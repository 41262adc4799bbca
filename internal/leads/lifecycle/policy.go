package lifecycle

import (
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/platform/config"

	"github.com/google/uuid"
)

// PhoneUniquenessPolicy decides which existing leads block a new or updated
// phone number. The global scope treats the phone as a system-wide key; the
// per-agent scope only rejects duplicates within one agent's book, with
// unassigned leads forming their own scope.
type PhoneUniquenessPolicy struct {
	scope string
}

func NewPhoneUniquenessPolicy(cfg config.LeadPolicyConfig) PhoneUniquenessPolicy {
	return PhoneUniquenessPolicy{scope: cfg.GetLeadPhoneUniqueness()}
}

func (p PhoneUniquenessPolicy) Global() bool {
	return p.scope != config.PhoneUniquenessPerAgent
}

// Conflicts reports whether an existing lead with the same phone blocks a
// write that would leave the lead assigned to agentID.
func (p PhoneUniquenessPolicy) Conflicts(existingAgent *uuid.UUID, agentID *uuid.UUID) bool {
	if p.Global() {
		return true
	}
	if existingAgent == nil && agentID == nil {
		return true
	}
	if existingAgent == nil || agentID == nil {
		return false
	}
	return *existingAgent == *agentID
}

// StatusAdvancementPolicy owns the automatic pipeline moves that piggyback
// on other operations. Explicit status writes always win over these.
type StatusAdvancementPolicy struct{}

// OnAssignment returns the status a lead should advance to when it gains
// an agent, or nil when the pipeline position must not move. Only a fresh
// lead advances; reassignment of a worked lead keeps its stage.
func (StatusAdvancementPolicy) OnAssignment(current transport.LeadStatus, firstAssignment bool) *transport.LeadStatus {
	if !firstAssignment {
		return nil
	}
	if current != transport.LeadStatusNew {
		return nil
	}
	contacted := transport.LeadStatusContacted
	return &contacted
}

// Terminal reports whether a status permits no further pipeline moves.
func (StatusAdvancementPolicy) Terminal(status transport.LeadStatus) bool {
	return status == transport.LeadStatusConverted
}
