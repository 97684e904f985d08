// Package followups provides the follow-up queue bounded context module.
package followups

import (
	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/followups/handler"
	"agencycrm_backend/internal/followups/repository"
	"agencycrm_backend/internal/followups/service"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the follow-ups bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, contacts service.LeadContacts, mail service.FollowUpMailer, act activity.Writer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, contacts, mail, act, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "followups"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the queue store for the drafting pipeline.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/follow-ups"))
}

var _ apphttp.Module = (*Module)(nil)
