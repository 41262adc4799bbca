package inapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estate_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate      = "notification.inapp.repository.create"
	opList        = "notification.inapp.repository.list"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"

	errUserIDRequired = "userId is required"
)

type Notification struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"userId"`
	Type              string     `json:"type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	RelatedEntityType *string    `json:"relatedEntityType,omitempty"`
	RelatedEntityID   *uuid.UUID `json:"relatedEntityId,omitempty"`
	IsRead            bool       `json:"isRead"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type CreateParams struct {
	UserID            uuid.UUID
	Type              string
	Title             string
	Message           string
	RelatedEntityType *string
	RelatedEntityID   *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation(errUserIDRequired).WithOp(opCreate)
	}
	if p.Title == "" || p.Message == "" {
		return Notification{}, apperr.Validation("title and message are required").WithOp(opCreate)
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO in_app_notifications
		(user_id, type, title, message, related_entity_type, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, type, title, message, related_entity_type, related_entity_id, is_read, read_at, created_at
	`, p.UserID, p.Type, p.Title, p.Message, p.RelatedEntityType, p.RelatedEntityID).Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, apperr.Validation("invalid userId").WithOp(opCreate)
		}
		return Notification{}, apperr.Internal(fmt.Sprintf("create in-app notification failed: %v", err)).WithOp(opCreate)
	}

	return n, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if userID == uuid.Nil {
		return nil, 0, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, related_entity_type, related_entity_id, is_read, read_at, created_at
		FROM in_app_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notification failed: %v", err)).WithOp(opList)
		}
		items = append(items, n)
	}

	if rows.Err() != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications failed: %v", rows.Err())).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

// MarkRead flips a single notification owned by userID. Ownership is part of
// the predicate so one user cannot mark another's notifications.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE in_app_notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE
	`, id, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opMarkAllRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE in_app_notifications
		SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("mark all read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return tag.RowsAffected(), nil
}
