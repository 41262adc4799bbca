package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID              uuid.UUID
	FullName        string
	Phone           string
	Email           *string
	Classification  string
	VoidReason      *string
	VoidReasonNote  *string
	Source          *string
	BudgetMin       *int64
	BudgetMax       *int64
	Status          string
	AssignedAgentID *uuid.UUID
	PriorityScore   int
	InvestmentScore int
	Profile         map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastContactedAt *time.Time
	ConvertedAt     *time.Time
}

const leadColumns = `id, full_name, phone, email, classification, void_reason, void_reason_note,
		source, budget_min, budget_max, status, assigned_agent_id, priority_score, investment_score,
		profile, created_at, updated_at, last_contacted_at, converted_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var profile []byte
	err := row.Scan(
		&lead.ID, &lead.FullName, &lead.Phone, &lead.Email, &lead.Classification,
		&lead.VoidReason, &lead.VoidReasonNote, &lead.Source, &lead.BudgetMin, &lead.BudgetMax,
		&lead.Status, &lead.AssignedAgentID, &lead.PriorityScore, &lead.InvestmentScore,
		&profile, &lead.CreatedAt, &lead.UpdatedAt, &lead.LastContactedAt, &lead.ConvertedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &lead.Profile); err != nil {
			return Lead{}, fmt.Errorf("decode lead profile: %w", err)
		}
	}
	return lead, nil
}

type CreateLeadParams struct {
	FullName        string
	Phone           string
	Email           *string
	Classification  string
	VoidReason      *string
	VoidReasonNote  *string
	Source          *string
	BudgetMin       *int64
	BudgetMax       *int64
	Status          string
	AssignedAgentID *uuid.UUID
	PriorityScore   int
	InvestmentScore int
	Profile         map[string]interface{}
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return insertLead(ctx, r.pool, params)
}

// rowQuerier lets the lead insert run against the pool or inside an open
// transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertLead(ctx context.Context, q rowQuerier, params CreateLeadParams) (Lead, error) {
	profile, err := encodeProfile(params.Profile)
	if err != nil {
		return Lead{}, err
	}
	lead, err := scanLead(q.QueryRow(ctx, `
		INSERT INTO leads (
			full_name, phone, email, classification, void_reason, void_reason_note,
			source, budget_min, budget_max, status, assigned_agent_id,
			priority_score, investment_score, profile
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns,
		params.FullName, params.Phone, params.Email, params.Classification,
		params.VoidReason, params.VoidReasonNote, params.Source, params.BudgetMin, params.BudgetMax,
		params.Status, params.AssignedAgentID, params.PriorityScore, params.InvestmentScore, profile,
	))
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// GetByPhone finds any non-deleted lead with the given normalized phone.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// GetByPhoneForAgent scopes the duplicate check to a single agent's book,
// with unassigned leads forming their own scope.
func (r *Repository) GetByPhoneForAgent(ctx context.Context, phone string, agentID *uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone = $1 AND assigned_agent_id IS NOT DISTINCT FROM $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, phone, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type UpdateLeadParams struct {
	FullName          *string
	Phone             *string
	Email             *string
	Classification    *string
	VoidReason        *string
	VoidReasonSet     bool
	VoidReasonNote    *string
	VoidReasonNoteSet bool
	Source            *string
	BudgetMin         *int64
	BudgetMax         *int64
	Status            *string
	AssignedAgentID   *uuid.UUID
	// AssignedAgentIDSet distinguishes "clear the assignment" from
	// "leave it alone".
	AssignedAgentIDSet bool
	PriorityScore      *int
	InvestmentScore    *int
	LastContactedAt    *time.Time
	// Profile entries are merged into the stored JSONB document.
	Profile map[string]interface{}
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.FullName != nil, "full_name", derefString(params.FullName)},
		{params.Phone != nil, "phone", derefString(params.Phone)},
		{params.Email != nil, "email", derefString(params.Email)},
		{params.Classification != nil, "classification", derefString(params.Classification)},
		{params.VoidReasonSet, "void_reason", params.VoidReason},
		{params.VoidReasonNoteSet, "void_reason_note", params.VoidReasonNote},
		{params.Source != nil, "source", derefString(params.Source)},
		{params.BudgetMin != nil, "budget_min", params.BudgetMin},
		{params.BudgetMax != nil, "budget_max", params.BudgetMax},
		{params.Status != nil, "status", derefString(params.Status)},
		{params.AssignedAgentIDSet, "assigned_agent_id", params.AssignedAgentID},
		{params.PriorityScore != nil, "priority_score", params.PriorityScore},
		{params.InvestmentScore != nil, "investment_score", params.InvestmentScore},
		{params.LastContactedAt != nil, "last_contacted_at", params.LastContactedAt},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	if len(params.Profile) > 0 {
		profile, err := encodeProfile(params.Profile)
		if err != nil {
			return Lead{}, err
		}
		setClauses = append(setClauses, fmt.Sprintf("profile = profile || $%d::jsonb", argIdx))
		args = append(args, profile)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, leadColumns)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// Convert stamps the terminal status. The status guard makes the write a
// no-op when the lead is already converted; callers detect that via the
// returned row count.
func (r *Repository) Convert(ctx context.Context, id uuid.UUID, status string) (Lead, bool, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $2, converted_at = now(), updated_at = now()
		WHERE id = $1 AND status <> $2 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		id, status,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}
	return lead, true, nil
}

type ListParams struct {
	Search          string
	Status          *string
	Classification  *string
	AssignedAgentID *uuid.UUID
	Limit           int
	Offset          int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	whereClause, args, argIdx := buildLeadListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildLeadListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	argIdx := 1

	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Classification != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("classification = $%d", argIdx))
		args = append(args, *params.Classification)
		argIdx++
	}
	if params.AssignedAgentID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_agent_id = $%d", argIdx))
		args = append(args, *params.AssignedAgentID)
		argIdx++
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(full_name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)",
			argIdx, argIdx+1, argIdx+2,
		))
		args = append(args, pattern, pattern, pattern)
		argIdx += 3
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func encodeProfile(profile map[string]interface{}) ([]byte, error) {
	if profile == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode lead profile: %w", err)
	}
	return data, nil
}

func derefString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
