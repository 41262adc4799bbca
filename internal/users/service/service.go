package service

import (
	"context"
	"errors"
	"strings"

	"estate_crm_backend/internal/auth/password"
	"estate_crm_backend/internal/users/repository"
	"estate_crm_backend/internal/users/transport"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/phone"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req transport.CreateUserRequest) (transport.UserResponse, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	params := repository.CreateUserParams{
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		if normalized == "" {
			return transport.UserResponse{}, apperr.Validation("phone is not a valid number")
		}
		params.Phone = &normalized
	}

	user, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.UserResponse{}, mapRepoError(err, "create user")
	}
	return toUserResponse(user), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.UserResponse{}, mapRepoError(err, "get user")
	}
	return toUserResponse(user), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateUserRequest) (transport.UserResponse, error) {
	params := repository.UpdateUserParams{
		Name: req.Name,
		Role: req.Role,
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		params.Email = &email
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		if normalized == "" {
			return transport.UserResponse{}, apperr.Validation("phone is not a valid number")
		}
		params.Phone = &normalized
	}
	if req.Password != nil {
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
		}
		params.PasswordHash = &hash
	}

	user, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.UserResponse{}, mapRepoError(err, "update user")
	}
	return toUserResponse(user), nil
}

func (s *Service) List(ctx context.Context, req transport.ListUsersRequest) (transport.UserListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 20
	}

	users, total, err := s.repo.List(ctx, repository.ListParams{
		Search: req.Search,
		Role:   req.Role,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return transport.UserListResponse{}, apperr.Wrap(apperr.KindInternal, "list users", err)
	}

	items := make([]transport.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}

	return transport.UserListResponse{
		Data: items,
		Pagination: transport.Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "delete user")
	}
	return nil
}

// normalizeEmail keeps stored addresses in the shape the lower(email)
// unique index compares against.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapRepoError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrEmailTaken):
		return apperr.Conflict("email already in use")
	case errors.Is(err, repository.ErrPhoneTaken):
		return apperr.Conflict("phone already in use")
	default:
		return apperr.Wrap(apperr.KindInternal, op, err)
	}
}

func toUserResponse(user repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		Phone:              user.Phone,
		Role:               user.Role,
		AssignedLeadsCount: user.AssignedLeadsCount,
		LastLogin:          user.LastLogin,
		CreatedAt:          user.CreatedAt,
		UpdatedAt:          user.UpdatedAt,
	}
}
