// Package auth provides the authentication bounded context module.
package auth

import (
	"estate_crm_backend/internal/auth/handler"
	"estate_crm_backend/internal/auth/repository"
	"estate_crm_backend/internal/auth/service"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg *config.Config, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, cfg, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Repository exposes the refresh-token store for the scheduler's pruning job.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	protectedAuth := ctx.Protected.Group("/auth")
	m.handler.RegisterProtectedRoutes(protectedAuth)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
