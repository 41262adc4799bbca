package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Assignment struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	FromAgent  *uuid.UUID
	ToAgent    uuid.UUID
	AssignedBy *uuid.UUID
	Reason     string
	CreatedAt  time.Time
}

// OutboxEntry is a durable notification row written in the same
// transaction as the assignment itself. The dedupe key makes retried
// assignments write each notification at most once.
type OutboxEntry struct {
	DedupeKey   string
	RecipientID uuid.UUID
	Kind        string
	Payload     map[string]interface{}
}

type AssignParams struct {
	LeadID        uuid.UUID
	FromAgent     *uuid.UUID
	ToAgent       uuid.UUID
	AssignedBy    *uuid.UUID
	Reason        string
	AdvanceStatus *string
}

// Assign records the handoff atomically: the lead row, the history entry
// and the notification outbox rows commit or roll back together.
func (r *Repository) Assign(ctx context.Context, params AssignParams, outbox func(historyID uuid.UUID) []OutboxEntry) (Lead, Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Lead{}, Assignment{}, err
	}
	defer tx.Rollback(ctx)

	var assignment Assignment
	err = tx.QueryRow(ctx, `
		INSERT INTO lead_assignments (lead_id, from_agent_id, to_agent_id, assigned_by, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, from_agent_id, to_agent_id, assigned_by, reason, created_at
	`, params.LeadID, params.FromAgent, params.ToAgent, params.AssignedBy, params.Reason).Scan(
		&assignment.ID, &assignment.LeadID, &assignment.FromAgent, &assignment.ToAgent,
		&assignment.AssignedBy, &assignment.Reason, &assignment.CreatedAt,
	)
	if err != nil {
		return Lead{}, Assignment{}, err
	}

	query := `
		UPDATE leads SET assigned_agent_id = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + leadColumns
	args := []interface{}{params.LeadID, params.ToAgent}
	if params.AdvanceStatus != nil {
		query = `
			UPDATE leads SET assigned_agent_id = $2, status = $3, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING ` + leadColumns
		args = append(args, *params.AdvanceStatus)
	}

	lead, err := scanLead(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, Assignment{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, Assignment{}, err
	}

	if outbox != nil {
		if err := insertOutboxEntries(ctx, tx, params.LeadID, outbox(assignment.ID)); err != nil {
			return Lead{}, Assignment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, Assignment{}, err
	}
	return lead, assignment, nil
}

// CreateAssigned inserts a lead that starts out assigned. The lead row, the
// initial history entry and the notification outbox rows are one
// transaction, exactly as with a later handoff through Assign. The outbox
// callback receives the inserted lead because its id does not exist before
// the insert.
func (r *Repository) CreateAssigned(ctx context.Context, params CreateLeadParams, assignedBy *uuid.UUID, reason string, outbox func(lead Lead, historyID uuid.UUID) []OutboxEntry) (Lead, Assignment, error) {
	if params.AssignedAgentID == nil {
		return Lead{}, Assignment{}, errors.New("create assigned: missing agent id")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Lead{}, Assignment{}, err
	}
	defer tx.Rollback(ctx)

	lead, err := insertLead(ctx, tx, params)
	if err != nil {
		return Lead{}, Assignment{}, err
	}

	var assignment Assignment
	err = tx.QueryRow(ctx, `
		INSERT INTO lead_assignments (lead_id, from_agent_id, to_agent_id, assigned_by, reason)
		VALUES ($1, NULL, $2, $3, $4)
		RETURNING id, lead_id, from_agent_id, to_agent_id, assigned_by, reason, created_at
	`, lead.ID, *params.AssignedAgentID, assignedBy, reason).Scan(
		&assignment.ID, &assignment.LeadID, &assignment.FromAgent, &assignment.ToAgent,
		&assignment.AssignedBy, &assignment.Reason, &assignment.CreatedAt,
	)
	if err != nil {
		return Lead{}, Assignment{}, err
	}

	if outbox != nil {
		if err := insertOutboxEntries(ctx, tx, lead.ID, outbox(lead, assignment.ID)); err != nil {
			return Lead{}, Assignment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, Assignment{}, err
	}
	return lead, assignment, nil
}

func insertOutboxEntries(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, entries []OutboxEntry) error {
	for _, entry := range entries {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("encode outbox payload: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO notification_outbox (dedupe_key, lead_id, recipient_id, kind, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (dedupe_key) DO NOTHING
		`, entry.DedupeKey, leadID, entry.RecipientID, entry.Kind, payload)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListAssignments(ctx context.Context, leadID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, from_agent_id, to_agent_id, assigned_by, reason, created_at
		FROM lead_assignments
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Assignment, 0)
	for rows.Next() {
		var item Assignment
		if err := rows.Scan(
			&item.ID, &item.LeadID, &item.FromAgent, &item.ToAgent,
			&item.AssignedBy, &item.Reason, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// CountAssignedTo reports how many active leads an agent currently holds.
func (r *Repository) CountAssignedTo(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads
		WHERE assigned_agent_id = $1 AND deleted_at IS NULL
	`, agentID).Scan(&count)
	return count, err
}
