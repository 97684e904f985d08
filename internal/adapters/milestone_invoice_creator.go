package adapters

import (
	"context"

	billingservice "agencycrm_backend/internal/billing/service"
	projectservice "agencycrm_backend/internal/projects/service"
)

// MilestoneInvoiceCreator lets completed milestones create their invoice in
// the billing module.
type MilestoneInvoiceCreator struct {
	billing *billingservice.Service
}

func NewMilestoneInvoiceCreator(billing *billingservice.Service) *MilestoneInvoiceCreator {
	return &MilestoneInvoiceCreator{billing: billing}
}

func (a *MilestoneInvoiceCreator) CreateForMilestone(ctx context.Context, p projectservice.InvoiceParams) error {
	return a.billing.CreateForMilestone(ctx, billingservice.MilestoneInvoiceParams{
		ClientID:      p.ClientID,
		ProjectID:     p.ProjectID,
		MilestoneID:   p.MilestoneID,
		ProjectName:   p.ProjectName,
		MilestoneName: p.MilestoneName,
		AmountCents:   p.AmountCents,
	})
}

var _ projectservice.InvoiceCreator = (*MilestoneInvoiceCreator)(nil)
