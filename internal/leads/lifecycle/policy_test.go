package lifecycle

import (
	"testing"

	"estate_crm_backend/internal/leads/transport"

	"github.com/google/uuid"
)

type staticPolicyConfig struct {
	scope string
}

func (c staticPolicyConfig) GetLeadPhoneUniqueness() string { return c.scope }

func TestPhoneUniquenessPolicyConflicts(t *testing.T) {
	agentA := uuid.New()
	agentB := uuid.New()

	tests := []struct {
		name          string
		scope         string
		existingAgent *uuid.UUID
		agent         *uuid.UUID
		want          bool
	}{
		{name: "global always conflicts", scope: "global", existingAgent: &agentA, agent: &agentB, want: true},
		{name: "global conflicts when unassigned", scope: "global", existingAgent: nil, agent: nil, want: true},
		{name: "per-agent same agent conflicts", scope: "per_agent", existingAgent: &agentA, agent: &agentA, want: true},
		{name: "per-agent different agent allowed", scope: "per_agent", existingAgent: &agentA, agent: &agentB, want: false},
		{name: "per-agent both unassigned conflicts", scope: "per_agent", existingAgent: nil, agent: nil, want: true},
		{name: "per-agent assigned vs unassigned allowed", scope: "per_agent", existingAgent: &agentA, agent: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewPhoneUniquenessPolicy(staticPolicyConfig{scope: tt.scope})
			if got := policy.Conflicts(tt.existingAgent, tt.agent); got != tt.want {
				t.Errorf("Conflicts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusAdvancementOnAssignment(t *testing.T) {
	var policy StatusAdvancementPolicy

	tests := []struct {
		name            string
		current         transport.LeadStatus
		firstAssignment bool
		want            *transport.LeadStatus
	}{
		{name: "new lead first assignment advances", current: transport.LeadStatusNew, firstAssignment: true, want: statusPtr(transport.LeadStatusContacted)},
		{name: "reassignment keeps stage", current: transport.LeadStatusQualified, firstAssignment: false, want: nil},
		{name: "new lead reassignment keeps stage", current: transport.LeadStatusNew, firstAssignment: false, want: nil},
		{name: "worked lead first assignment keeps stage", current: transport.LeadStatusNegotiation, firstAssignment: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.OnAssignment(tt.current, tt.firstAssignment)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("OnAssignment() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("OnAssignment() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func statusPtr(s transport.LeadStatus) *transport.LeadStatus { return &s }
