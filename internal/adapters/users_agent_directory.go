// Package adapters contains adapters that bridge bounded contexts. They
// implement interfaces defined by consuming domains while wrapping stores
// from providing domains, so neither context imports the other's internals.
package adapters

import (
	"context"
	"errors"

	"estate_crm_backend/internal/leads/lifecycle"
	"estate_crm_backend/internal/users/repository"

	"github.com/google/uuid"
)

// UsersAgentDirectory adapts the users repository to the lead lifecycle's
// AgentDirectory port.
type UsersAgentDirectory struct {
	repo *repository.Repository
}

func NewUsersAgentDirectory(repo *repository.Repository) *UsersAgentDirectory {
	return &UsersAgentDirectory{repo: repo}
}

// GetAgent resolves a user id into an assignable agent. Accounts that exist
// but cannot hold leads (developer tooling accounts) are reported as absent.
func (d *UsersAgentDirectory) GetAgent(ctx context.Context, id uuid.UUID) (lifecycle.Agent, error) {
	user, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return lifecycle.Agent{}, lifecycle.ErrAgentNotFound
		}
		return lifecycle.Agent{}, err
	}

	if user.Role != lifecycle.RoleSalesAgent && user.Role != lifecycle.RoleAdmin {
		return lifecycle.Agent{}, lifecycle.ErrAgentNotFound
	}

	return lifecycle.Agent{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}, nil
}

// Compile-time check that the adapter satisfies the port.
var _ lifecycle.AgentDirectory = (*UsersAgentDirectory)(nil)
