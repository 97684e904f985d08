// Package projects provides the project delivery bounded context module.
package projects

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/projects/handler"
	"agencycrm_backend/internal/projects/repository"
	"agencycrm_backend/internal/projects/service"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the projects bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the projects module. The lead advancer,
// invoice creator and client reader cross bounded contexts and are injected
// from the composition root via adapters.
func NewModule(pool *pgxpool.Pool, leads service.LeadAdvancer, invoices service.InvoiceCreator, clients service.ClientReader, act activity.Writer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, invoices, clients, act, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "projects"
}

// Service returns the project workflow service for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(
		ctx.Protected.Group("/projects"),
		ctx.Protected.Group("/phases"),
		ctx.Protected.Group("/milestones"),
	)
}

var _ apphttp.Module = (*Module)(nil)
