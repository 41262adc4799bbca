package scheduler

import (
	"context"
	"time"

	authrepo "estate_crm_backend/internal/auth/repository"
	"estate_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRefreshTokenCleanupInterval = time.Hour

// RefreshTokenCleanup periodically deletes expired refresh tokens so the
// table does not accumulate dead sessions.
type RefreshTokenCleanup struct {
	repo     *authrepo.Repository
	log      *logger.Logger
	interval time.Duration
}

func NewRefreshTokenCleanup(pool *pgxpool.Pool, log *logger.Logger, interval time.Duration) *RefreshTokenCleanup {
	if interval <= 0 {
		interval = defaultRefreshTokenCleanupInterval
	}

	return &RefreshTokenCleanup{
		repo:     authrepo.New(pool),
		log:      log,
		interval: interval,
	}
}

func (c *RefreshTokenCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *RefreshTokenCleanup) cleanup(ctx context.Context) {
	deleted, err := c.repo.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		c.log.Warn("refresh token cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("refresh token cleanup deleted expired tokens", "deleted", deleted)
	}
}
