// Package leads provides the lead pipeline bounded context module.
package leads

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/leads/handler"
	"agencycrm_backend/internal/leads/repository"
	"agencycrm_backend/internal/leads/service"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
// The client gateway crosses bounded contexts, so it is injected from the
// composition root via an adapter.
func NewModule(pool *pgxpool.Pool, clients service.ClientGateway, act activity.Writer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clients, act, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead workflow service for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
