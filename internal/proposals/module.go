// Package proposals provides the proposal bounded context module.
package proposals

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/proposals/handler"
	"agencycrm_backend/internal/proposals/repository"
	"agencycrm_backend/internal/proposals/service"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the proposals bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the proposals module. Contacts, mailer
// and the lead advancer cross bounded contexts and are injected via
// adapters.
func NewModule(pool *pgxpool.Pool, contacts service.ContactResolver, mail service.ProposalMailer, leads service.LeadAdvancer, act activity.Writer, eventBus events.Bus, appBaseURL string, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, contacts, mail, leads, act, eventBus, appBaseURL, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "proposals"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/proposals"))
}

var _ apphttp.Module = (*Module)(nil)
