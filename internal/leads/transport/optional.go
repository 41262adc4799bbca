package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// OptionalUUID distinguishes between a field that was absent from the
// request body, one that was explicitly null, and one carrying a value.
// Absent means "leave unchanged"; null means "clear the assignment".
type OptionalUUID struct {
	Set   bool
	Valid bool
	Value uuid.UUID
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Valid = false
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("assignedAgent must be a string or null: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("assignedAgent is not a valid id: %w", err)
	}
	o.Valid = true
	o.Value = id
	return nil
}

func (o OptionalUUID) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value.String())
}
