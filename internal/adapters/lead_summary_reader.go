package adapters

import (
	"context"

	"github.com/google/uuid"

	"agencycrm_backend/internal/followups/drafter"
	leadservice "agencycrm_backend/internal/leads/service"
)

// LeadSummaryReader feeds lead context into the follow-up drafting prompt.
type LeadSummaryReader struct {
	leads *leadservice.Service
}

func NewLeadSummaryReader(leads *leadservice.Service) *LeadSummaryReader {
	return &LeadSummaryReader{leads: leads}
}

func (r *LeadSummaryReader) LeadSummary(ctx context.Context, leadID uuid.UUID) (drafter.LeadSummary, error) {
	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		return drafter.LeadSummary{}, err
	}

	summary := drafter.LeadSummary{
		Name:  lead.FirstName + " " + lead.LastName,
		Stage: lead.PipelineStage,
	}
	if lead.Company != nil {
		summary.Company = *lead.Company
	}
	if lead.Notes != nil {
		summary.Notes = *lead.Notes
	}
	return summary, nil
}

var _ drafter.LeadSummaries = (*LeadSummaryReader)(nil)
