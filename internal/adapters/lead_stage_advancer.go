package adapters

import (
	"context"

	"github.com/google/uuid"

	"agencycrm_backend/internal/leads/domain"
	leadservice "agencycrm_backend/internal/leads/service"
	projectservice "agencycrm_backend/internal/projects/service"
	proposalservice "agencycrm_backend/internal/proposals/service"
)

// LeadStageAdvancer exposes the automatic pipeline advancement to the
// modules whose cascades drive it.
type LeadStageAdvancer struct {
	leads *leadservice.Service
}

func NewLeadStageAdvancer(leads *leadservice.Service) *LeadStageAdvancer {
	return &LeadStageAdvancer{leads: leads}
}

func (a *LeadStageAdvancer) AdvanceToActiveClient(ctx context.Context, leadID uuid.UUID, reason string) error {
	return a.leads.AdvanceStage(ctx, leadID, domain.StageActiveClient, reason)
}

func (a *LeadStageAdvancer) AdvanceToProjectDelivered(ctx context.Context, leadID uuid.UUID, reason string) error {
	return a.leads.AdvanceStage(ctx, leadID, domain.StageProjectDelivered, reason)
}

func (a *LeadStageAdvancer) AdvanceToProposalSent(ctx context.Context, leadID uuid.UUID, reason string) error {
	return a.leads.AdvanceStage(ctx, leadID, domain.StageProposalSent, reason)
}

var (
	_ projectservice.LeadAdvancer  = (*LeadStageAdvancer)(nil)
	_ proposalservice.LeadAdvancer = (*LeadStageAdvancer)(nil)
)
