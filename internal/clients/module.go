// Package clients provides the client and portal access bounded context
// module.
package clients

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/clients/handler"
	"agencycrm_backend/internal/clients/repository"
	"agencycrm_backend/internal/clients/service"
	"agencycrm_backend/internal/email"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/identity"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the clients bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the clients module. The identity
// provider may be nil when the portal runs without one.
func NewModule(pool *pgxpool.Pool, provider identity.Provider, team *identity.Directory, mail email.Sender, act activity.Writer, eventBus events.Bus, portalURL string, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, provider, team, mail, act, eventBus, portalURL, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "clients"
}

// Service returns the client workflow service for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
}

var _ apphttp.Module = (*Module)(nil)
