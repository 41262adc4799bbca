// Package users provides the user account bounded context module.
package users

import (
	"estate_crm_backend/internal/users/handler"
	"estate_crm_backend/internal/users/repository"
	"estate_crm_backend/internal/users/service"

	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the users bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the users module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "users"
}

// Repository exposes the user store for cross-context adapters.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts user routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	usersGroup := ctx.Protected.Group("/users")
	m.handler.RegisterRoutes(usersGroup)

	adminUsers := ctx.Admin.Group("/users")
	m.handler.RegisterAdminRoutes(adminUsers)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
