// Package billing provides the invoicing bounded context module.
package billing

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/billing/handler"
	"agencycrm_backend/internal/billing/repository"
	"agencycrm_backend/internal/billing/service"
	"agencycrm_backend/internal/billing/square"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the billing module. The client reader
// crosses bounded contexts and is injected via an adapter.
func NewModule(pool *pgxpool.Pool, cfg config.SquareConfig, clients service.ClientReader, act activity.Writer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	// A nil *square.Client must stay a nil interface, not a typed nil.
	var provider service.Provider
	if client := square.NewClient(cfg, log); client != nil {
		provider = client
	}

	svc := service.New(repo, provider, clients, act, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "billing"
}

// Service returns the billing workflow service for cross-module adapters
// and the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/invoices"))
}

var _ apphttp.Module = (*Module)(nil)
