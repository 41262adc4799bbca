package adapters

import (
	"context"

	"estate_crm_backend/internal/notification"
	"estate_crm_backend/internal/users/repository"

	"github.com/google/uuid"
)

// UsersRecipientDirectory adapts the users repository to the notification
// module's RecipientDirectory port.
type UsersRecipientDirectory struct {
	repo *repository.Repository
}

func NewUsersRecipientDirectory(repo *repository.Repository) *UsersRecipientDirectory {
	return &UsersRecipientDirectory{repo: repo}
}

func (d *UsersRecipientDirectory) GetRecipient(ctx context.Context, id uuid.UUID) (notification.Recipient, error) {
	user, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return notification.Recipient{}, err
	}
	return notification.Recipient{
		Name:  user.Name,
		Email: user.Email,
	}, nil
}

var _ notification.RecipientDirectory = (*UsersRecipientDirectory)(nil)
