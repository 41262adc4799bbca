package transport

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestOptionalUUIDUnmarshal(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValid bool
		wantErr   bool
	}{
		{name: "absent", body: `{}`, wantSet: false},
		{name: "explicit null", body: `{"assignedAgent":null}`, wantSet: true, wantValid: false},
		{name: "valid id", body: `{"assignedAgent":"` + id.String() + `"}`, wantSet: true, wantValid: true},
		{name: "malformed id", body: `{"assignedAgent":"not-a-uuid"}`, wantErr: true},
		{name: "wrong type", body: `{"assignedAgent":42}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload struct {
				AssignedAgent OptionalUUID `json:"assignedAgent"`
			}
			err := json.Unmarshal([]byte(tt.body), &payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payload.AssignedAgent.Set != tt.wantSet {
				t.Errorf("Set = %v, want %v", payload.AssignedAgent.Set, tt.wantSet)
			}
			if payload.AssignedAgent.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", payload.AssignedAgent.Valid, tt.wantValid)
			}
			if tt.wantValid && payload.AssignedAgent.Value != id {
				t.Errorf("Value = %v, want %v", payload.AssignedAgent.Value, id)
			}
		})
	}
}
