package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusEnqueued   Status = "enqueued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var ErrNotFound = errors.New("outbox record not found")

type Record struct {
	ID          uuid.UUID
	DedupeKey   string
	LeadID      *uuid.UUID
	RecipientID uuid.UUID
	Kind        string
	Payload     json.RawMessage
	RunAt       time.Time
	Status      Status
	Attempts    int
}

type InsertParams struct {
	DedupeKey   string
	LeadID      *uuid.UUID
	RecipientID uuid.UUID
	Kind        string
	Payload     any
	RunAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a new outbox row. A duplicate dedupe key is not an error:
// the row already exists, so the id of the existing row is irrelevant and
// uuid.Nil is returned with ok=false.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, bool, error) {
	if p.DedupeKey == "" {
		return uuid.Nil, false, fmt.Errorf("dedupeKey is required")
	}
	if p.RecipientID == uuid.Nil {
		return uuid.Nil, false, fmt.Errorf("recipientId is required")
	}
	if p.Kind == "" {
		return uuid.Nil, false, fmt.Errorf("kind is required")
	}
	if p.RunAt.IsZero() {
		p.RunAt = time.Now().UTC()
	}

	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("marshal payload: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `
		INSERT INTO notification_outbox (dedupe_key, lead_id, recipient_id, kind, payload, run_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id
	`, p.DedupeKey, p.LeadID, p.RecipientID, p.Kind, payloadBytes, p.RunAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, dedupe_key, lead_id, recipient_id, kind, payload, run_at, status, attempts
		FROM notification_outbox
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.DedupeKey, &rec.LeadID, &rec.RecipientID, &rec.Kind,
		&rec.Payload, &rec.RunAt, &status, &rec.Attempts,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

// ClaimPending transitions due pending rows to enqueued and returns them.
// FOR UPDATE SKIP LOCKED keeps concurrent dispatchers from claiming the
// same rows.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM notification_outbox
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_outbox o
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.dedupe_key, o.lead_id, o.recipient_id, o.kind, o.payload, o.run_at, o.status, o.attempts`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(
			&rec.ID, &rec.DedupeKey, &rec.LeadID, &rec.RecipientID, &rec.Kind,
			&rec.Payload, &rec.RunAt, &status, &rec.Attempts,
		); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET status = 'pending', last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, lastError)
	return err
}

func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET status = 'succeeded', last_error = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, lastError)
	return err
}
