// Package leads provides the lead management bounded context module.
package leads

import (
	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/internal/leads/handler"
	"estate_crm_backend/internal/leads/lifecycle"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	lifecycle *lifecycle.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
// The agent directory is provided by the users module; leads never reads the
// users tables directly.
func NewModule(pool *pgxpool.Pool, agents lifecycle.AgentDirectory, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)

	svc := lifecycle.New(repo, agents, eventBus, lifecycle.NewPhoneUniquenessPolicy(cfg), log)
	h := handler.New(svc, val)

	return &Module{
		handler:   h,
		lifecycle: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// LifecycleService returns the lead lifecycle service for external use.
func (m *Module) LifecycleService() *lifecycle.Service {
	return m.lifecycle
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Intake is open to anonymous callers; identity is attached when a
	// valid token is present so sales agents self-assign on create.
	intake := ctx.V1.Group("/leads")
	intake.Use(httpkit.OptionalAuth(ctx.Config))
	m.handler.RegisterPublicRoutes(intake)

	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
