package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
	ErrPhoneTaken = errors.New("phone already in use")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Phone              *string
	PasswordHash       string
	Role               string
	AssignedLeadsCount int
	LastLogin          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// userColumns includes the derived lead count so every read surfaces it
// without a second query.
const userColumns = `u.id, u.name, u.email, u.phone, u.password_hash, u.role,
		(SELECT COUNT(*) FROM leads l WHERE l.assigned_agent_id = u.id AND l.deleted_at IS NULL),
		u.last_login, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.PasswordHash,
		&user.Role, &user.AssignedLeadsCount, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

type CreateUserParams struct {
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	Role         string
}

func (r *Repository) Create(ctx context.Context, params CreateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users AS u (name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		params.Name, params.Email, params.Phone, params.PasswordHash, params.Role,
	))
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return user, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.id = $1 AND u.deleted_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

type UpdateUserParams struct {
	Name         *string
	Email        *string
	Phone        *string
	PasswordHash *string
	Role         *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateUserParams) (User, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.Name != nil, "name", params.Name},
		{params.Email != nil, "email", params.Email},
		{params.Phone != nil, "phone", params.Phone},
		{params.PasswordHash != nil, "password_hash", params.PasswordHash},
		{params.Role != nil, "role", params.Role},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE users AS u SET %s
		WHERE u.id = $%d AND u.deleted_at IS NULL
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return user, nil
}

type ListParams struct {
	Search string
	Role   string
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]User, int, error) {
	whereClauses := []string{"u.deleted_at IS NULL"}
	args := []interface{}{}
	argIdx := 1

	if params.Role != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("u.role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(u.name ILIKE $%d OR u.email ILIKE $%d OR u.phone ILIKE $%d)",
			argIdx, argIdx+1, argIdx+2,
		))
		args = append(args, pattern, pattern, pattern)
		argIdx += 3
	}

	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users u WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM users u
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return users, total, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET deleted_at = now(), updated_at = now()
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

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_unique":
			return ErrEmailTaken
		case "users_phone_unique":
			return ErrPhoneTaken
		}
	}
	return err
}
