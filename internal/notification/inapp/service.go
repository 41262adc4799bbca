package inapp

import (
	"context"

	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo *Repository
	log  *logger.Logger
}

func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

type SendParams struct {
	UserID            uuid.UUID
	Type              string
	Title             string
	Message           string
	RelatedEntityType string
	RelatedEntityID   *uuid.UUID
}

// Send persists the notification. Failures are logged and returned so the
// caller can decide whether they matter; lead mutations never do.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	var entityType *string
	if p.RelatedEntityType != "" {
		entityType = &p.RelatedEntityType
	}

	_, err := s.repo.Create(ctx, CreateParams{
		UserID:            p.UserID,
		Type:              p.Type,
		Title:             p.Title,
		Message:           p.Message,
		RelatedEntityType: entityType,
		RelatedEntityID:   p.RelatedEntityID,
	})
	if err != nil {
		s.log.NotificationError(p.Type, p.UserID.String(), err)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, userID, limit, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
